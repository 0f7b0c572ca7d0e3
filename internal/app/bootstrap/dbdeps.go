// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	// bg holds background work started by Startup and BuildHandler so
	// Shutdown can stop it. It is a pointer because hooks receive DBDeps by
	// value.
	bg *background
}

// background collects stop functions in start order.
type background struct {
	stops []func()
}

func (b *background) add(stop func()) {
	if b != nil {
		b.stops = append(b.stops, stop)
	}
}

// stopAll runs the stop functions in reverse order.
func (b *background) stopAll() {
	if b == nil {
		return
	}
	for i := len(b.stops) - 1; i >= 0; i-- {
		b.stops[i]()
	}
	b.stops = nil
}

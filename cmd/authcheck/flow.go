package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	profilestore "github.com/dalemusser/venturecamp/internal/app/store/profiles"
	"github.com/dalemusser/venturecamp/internal/app/system/authclient"
	"github.com/dalemusser/venturecamp/internal/app/system/authstate"
	"github.com/dalemusser/venturecamp/internal/app/system/identity"
	"github.com/dalemusser/venturecamp/internal/app/system/identity/firebase"
	"github.com/dalemusser/venturecamp/internal/app/system/identity/local"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

var flowOpts struct {
	server     string
	backend    string
	signingKey string
	apiKey     string
	emulator   string
	mongoURI   string
	mongoDB    string
	email      string
	password   string
	name       string
	signUp     bool
	remember   bool
	protected  string
	timeout    time.Duration
}

var flowCmd = &cobra.Command{
	Use:   "flow",
	Short: "Sign in, load a protected page, sign out and load it again",
	Long: `flow drives one full session against a running server:

  1. sign up or sign in with the configured identity backend
  2. mint the session cookie through POST /api/auth/session
  3. GET the protected path with the cookie
  4. log out, which clears the cookie
  5. GET the protected path again, expecting the login redirect`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), flowOpts.timeout)
		defer cancel()
		return runFlow(ctx, cmd.OutOrStdout())
	},
}

func init() {
	f := flowCmd.Flags()
	f.StringVar(&flowOpts.server, "server", "http://localhost:8080", "VentureCamp base URL")
	f.StringVar(&flowOpts.backend, "backend", "local", "identity backend: local or firebase")
	f.StringVar(&flowOpts.signingKey, "signing-key", "dev-only-change-me-please-0123456789ABCDEF", "local backend signing key (must match the server)")
	f.StringVar(&flowOpts.apiKey, "api-key", "", "Firebase web API key")
	f.StringVar(&flowOpts.emulator, "emulator", "", "Firebase Auth emulator host:port")
	f.StringVar(&flowOpts.mongoURI, "mongo-uri", "mongodb://localhost:27017", "MongoDB URI for profiles")
	f.StringVar(&flowOpts.mongoDB, "mongo-db", "venturecamp", "MongoDB database")
	f.StringVar(&flowOpts.email, "email", "", "account email")
	f.StringVar(&flowOpts.password, "password", "", "account password")
	f.StringVar(&flowOpts.name, "name", "", "display name (sign up only)")
	f.BoolVar(&flowOpts.signUp, "signup", false, "create the account first")
	f.BoolVar(&flowOpts.remember, "remember", true, "durable session cookie")
	f.StringVar(&flowOpts.protected, "path", "/", "protected path to load")
	f.DurationVar(&flowOpts.timeout, "timeout", time.Minute, "overall timeout")
	_ = flowCmd.MarkFlagRequired("email")
	_ = flowCmd.MarkFlagRequired("password")
}

func flowBackend(ctx context.Context) (identity.Backend, error) {
	switch flowOpts.backend {
	case "local":
		return local.New([]byte(flowOpts.signingKey))
	case "firebase":
		var opts []firebase.Option
		if flowOpts.emulator != "" {
			opts = append(opts, firebase.WithEmulator(flowOpts.emulator))
		}
		return firebase.NewClient(ctx, flowOpts.apiKey, opts...)
	}
	return nil, fmt.Errorf("unknown backend %q", flowOpts.backend)
}

func runFlow(ctx context.Context, out io.Writer) error {
	backend, err := flowBackend(ctx)
	if err != nil {
		return err
	}

	mc, err := mongo.Connect(ctx, options.Client().ApplyURI(flowOpts.mongoURI).SetAppName("authcheck"))
	if err != nil {
		return fmt.Errorf("mongo connect: %w", err)
	}
	defer func() { _ = mc.Disconnect(context.Background()) }()

	hs, err := authclient.NewHTTPSync(flowOpts.server)
	if err != nil {
		return err
	}

	client := authclient.New(authclient.Config{
		Backend:  backend,
		Profiles: profilestore.New(mc.Database(flowOpts.mongoDB)),
		Session:  hs,
		Policy:   authclient.Block,
		Log:      logger,
	})

	nav := &consoleNav{path: flowOpts.protected, out: out}
	obs := authstate.New(authstate.Config{
		Source:    client,
		Profiles:  client,
		Navigator: nav,
		Log:       logger,
	})
	defer obs.Close()

	if flowOpts.signUp {
		_, err = client.SignUp(ctx, flowOpts.email, flowOpts.password, flowOpts.name)
	} else {
		_, err = client.SignIn(ctx, flowOpts.email, flowOpts.password, flowOpts.remember)
	}
	if err != nil {
		return fmt.Errorf("sign in: %s (%s)", identity.UserMessage(err), identity.Code(err))
	}
	obs.Wait()
	if err := printSnapshot(out, obs.Snapshot()); err != nil {
		return err
	}

	hc := hs.HTTPClient()
	if err := probe(ctx, out, hc, "signed in"); err != nil {
		return err
	}

	client.Logout(ctx)
	obs.Wait()
	return probe(ctx, out, hc, "signed out")
}

func probe(ctx context.Context, out io.Writer, hc *http.Client, label string) error {
	target := strings.TrimSuffix(flowOpts.server, "/") + flowOpts.protected
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", flowOpts.protected, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	line := fmt.Sprintf("%-10s GET %s -> %d", label, flowOpts.protected, resp.StatusCode)
	if loc := resp.Header.Get("Location"); loc != "" {
		line += " " + loc
	}
	_, err = fmt.Fprintln(out, line)
	logger.Debug("probe", zap.String("label", label), zap.Int("status", resp.StatusCode))
	return err
}

func printSnapshot(out io.Writer, s authstate.Snapshot) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// consoleNav prints every navigation instead of performing it.
type consoleNav struct {
	mu   sync.Mutex
	path string
	out  io.Writer
}

func (n *consoleNav) Path() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.path
}

func (n *consoleNav) Push(path string) {
	n.mu.Lock()
	n.path = path
	n.mu.Unlock()
	fmt.Fprintf(n.out, "navigate   %s\n", path)
}

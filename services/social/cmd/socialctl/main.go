// Command socialctl is a terminal client for the social service. It drives
// the same views a browser would: optimistic writes, reply threads and
// realtime updates.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/example/orbit/internal/platform/logging"
	"github.com/example/orbit/internal/platform/natsconn"
	"github.com/example/orbit/internal/platform/retry"
	"github.com/example/orbit/services/social/internal/client"
	"github.com/example/orbit/services/social/internal/domain"
	"github.com/example/orbit/services/social/internal/events"
	"github.com/example/orbit/services/social/internal/realtime"
	"github.com/example/orbit/services/social/internal/session"
	"github.com/example/orbit/services/social/internal/view"
)

const usage = `usage: socialctl <command> [flags] [args]

commands:
  token     mint a development token from JWT_SECRET
  feed      list the newest posts
  post      publish a post
  thread    show a post with its comments
  comment   comment on a post or reply to a comment
  like      like or unlike a post
  watch     follow a post's comments live (needs NATS)
  profile   show or change a profile, follow or unfollow
  username  pick a username for the signed-in user

environment:
  SOCIAL_API_URL  service base URL (default http://localhost:8080)
  SOCIAL_TOKEN    bearer token for writes
  NATS_URL        NATS server for watch
  LOG_LEVEL       client log level (default warn)
`

type command func(ctx context.Context, e *env, args []string) error

var commands = map[string]command{
	"token":    cmdToken,
	"feed":     cmdFeed,
	"post":     cmdPost,
	"thread":   cmdThread,
	"comment":  cmdComment,
	"like":     cmdLike,
	"watch":    cmdWatch,
	"profile":  cmdProfile,
	"username": cmdUsername,
}

func main() {
	_ = godotenv.Load()
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	cmd, ok := commands[os.Args[1]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	log, err := logging.NewConsole(os.Getenv("LOG_LEVEL"))
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	e := &env{
		apiURL:  strings.TrimSpace(os.Getenv("SOCIAL_API_URL")),
		token:   strings.TrimSpace(os.Getenv("SOCIAL_TOKEN")),
		natsURL: strings.TrimSpace(os.Getenv("NATS_URL")),
		log:     log,
	}
	defer e.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd(ctx, e, os.Args[2:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "socialctl %s: %s\n", os.Args[1], describe(err))
		stop()
		e.close()
		os.Exit(1)
	}
}

// describe prefixes err with its kind so scripts can tell retryable
// failures apart.
func describe(err error) string {
	return "[" + domain.KindOf(err).String() + "] " + err.Error()
}

// env holds what commands share: configuration and lazily built
// collaborators.
type env struct {
	apiURL  string
	token   string
	natsURL string
	log     *zap.Logger

	closers []func()
}

func (e *env) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
}

// deps builds view dependencies backed by the HTTP API. With live set the
// views also subscribe to realtime changes over NATS.
func (e *env) deps(live bool) (view.Deps, error) {
	c := client.New(e.apiURL,
		client.WithToken(e.token),
		client.WithLogger(e.log),
		client.WithCircuitBreaker(client.NewBreaker("social-api", 5, 30*time.Second, e.log)),
	)
	d := view.Deps{
		Stores:  c.Stores(),
		Objects: c.Objects(),
		Session: session.Token(e.token),
		Bus:     events.NewBus(),
		Logger:  e.log,
		Load:    retry.Policy{Attempts: 3, Base: 200 * time.Millisecond, Max: 2 * time.Second},
	}
	if live {
		nc, err := natsconn.Connect(natsconn.Options{URL: e.natsURL, Name: "socialctl", Logger: e.log})
		if err != nil {
			return view.Deps{}, domain.Transient("realtime", err)
		}
		e.closers = append(e.closers, nc.Close)
		d.Realtime = realtime.NewBroker(nc, e.log)
	}
	return d, nil
}

// parse parses flags for a command and returns the positional arguments.
// want is the minimum number of positional arguments.
func parse(fs *flag.FlagSet, args []string, want int, synopsis string) ([]string, error) {
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: socialctl %s %s\n", fs.Name(), synopsis)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() < want {
		fs.Usage()
		return nil, flag.ErrHelp
	}
	return fs.Args(), nil
}

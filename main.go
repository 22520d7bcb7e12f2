package main

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"golang.org/x/exp/slog"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Context struct {
	Debug  bool
	Logger *slog.Logger

	Dialector gorm.Dialector
	gorm.Config

	Host         string
	PollInterval time.Duration
	Concurrency  int
	Rate         float64
}

var cli struct {
	Debug  bool            `help:"Enable debug mode."`
	Config kong.ConfigFlag `help:"Load flags from a YAML file."`

	Host         string        `help:"API base of your node." env:"COURIER_HOST" default:"http://localhost:8000/api"`
	DSN          string        `help:"Session database." env:"COURIER_DSN" default:"${dsn}"`
	PollInterval time.Duration `help:"How often open views refresh." default:"10s"`
	Concurrency  int           `help:"Inbox deliveries in flight at once." default:"8"`
	Rate         float64       `help:"Inbox deliveries per second, 0 for no limit." default:"0"`

	AutoMigrate AutoMigrateCmd `cmd:"" help:"Create or update the session database."`
	Login       LoginCmd       `cmd:"" help:"Sign in to your node."`
	Logout      LogoutCmd      `cmd:"" help:"Sign out."`
	Whoami      WhoamiCmd      `cmd:"" help:"Show who is signed in."`
	Post        PostCmd        `cmd:"" help:"Publish a post."`
	Edit        EditCmd        `cmd:"" help:"Replace one of your posts."`
	Delete      DeleteCmd      `cmd:"" help:"Delete one of your posts."`
	Share       ShareCmd       `cmd:"" help:"Send a post to your followers."`
	Like        LikeCmd        `cmd:"" help:"Like a post."`
	Comment     CommentCmd     `cmd:"" help:"Comment on a post."`
	Follow      FollowCmd      `cmd:"" help:"Ask to follow an author."`
	Unfollow    UnfollowCmd    `cmd:"" help:"Stop following an author."`
	Accept      AcceptCmd      `cmd:"" help:"Accept a follow request."`
	Inbox       InboxCmd       `cmd:"" help:"Read or clear your inbox."`
	Feed        FeedCmd        `cmd:"" help:"Show the public or following stream."`
	Watch       WatchCmd       `cmd:"" help:"Follow your inbox and feed as they change."`
	Node        NodeCmd        `cmd:"" help:"Run an in-memory node for local development."`
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("courier"),
		kong.Description("Publish to, and read from, a federated social node."),
		kong.Configuration(yamlConfig, "~/.config/courier/config.yaml"),
		kong.Vars{"dsn": defaultDSN},
	)
	level := slog.LevelInfo
	if cli.Debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	gormLog := logger.Default.LogMode(logger.Silent)
	if cli.Debug {
		gormLog = logger.Default.LogMode(logger.Info)
	}
	err := ctx.Run(&Context{
		Debug:     cli.Debug,
		Logger:    log,
		Dialector: newDialector(cli.DSN),
		Config: gorm.Config{
			Logger: gormLog,
		},
		Host:         cli.Host,
		PollInterval: cli.PollInterval,
		Concurrency:  cli.Concurrency,
		Rate:         cli.Rate,
	})
	ctx.FatalIfErrorf(err)
}

// yamlConfig resolves flags from a YAML document whose keys are flag names.
// Dashes in names may be written as underscores.
func yamlConfig(r io.Reader) (kong.Resolver, error) {
	values := make(map[string]any)
	if err := yaml.NewDecoder(r).Decode(&values); err != nil && err != io.EOF {
		return nil, err
	}
	return kong.ResolverFunc(func(kctx *kong.Context, parent *kong.Path, flag *kong.Flag) (any, error) {
		if v, ok := values[flag.Name]; ok {
			return v, nil
		}
		return values[strings.ReplaceAll(flag.Name, "-", "_")], nil
	}), nil
}

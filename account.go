package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/ssh/terminal"
	"golang.org/x/exp/slog"

	"github.com/socialdistribution/courier/internal/activitypub"
	"github.com/socialdistribution/courier/models"
)

type LoginCmd struct {
	Username string `arg:"" help:"your username on the node"`
	Password string `help:"password; prompted for if not set" env:"COURIER_PASSWORD"`
}

func (l *LoginCmd) Run(ctx *Context) error {
	password := l.Password
	if password == "" {
		fmt.Fprint(os.Stderr, "Password: ")
		b, err := terminal.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return err
		}
		password = string(b)
	}

	sessions, err := ctx.sessions()
	if err != nil {
		return err
	}
	client := activitypub.Anonymous(ctx.Host, activitypub.WithLogger(ctx.Logger))
	session, err := client.Login(context.Background(), l.Username, password)
	if err != nil {
		return err
	}
	if err := sessions.Save(session); err != nil {
		return err
	}
	ctx.Logger.Info("signed in", slog.String("author", session.Author.ID), slog.String("host", session.Host))
	return nil
}

type LogoutCmd struct{}

func (l *LogoutCmd) Run(ctx *Context) error {
	sessions, err := ctx.sessions()
	if err != nil {
		return err
	}
	return sessions.Clear()
}

type WhoamiCmd struct{}

func (w *WhoamiCmd) Run(ctx *Context) error {
	sessions, err := ctx.sessions()
	if err != nil {
		return err
	}
	session, err := sessions.Current()
	if errors.Is(err, models.ErrNoSession) {
		fmt.Println("nobody")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Printf("%s (%s) on %s\n", clean(session.Author.String()), session.Author.ID, session.Host)
	return nil
}

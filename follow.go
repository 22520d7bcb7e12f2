package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/socialdistribution/courier/follow"
)

type FollowCmd struct {
	Author string        `arg:"" help:"author to follow"`
	Wait   time.Duration `help:"wait this long for the request to be accepted"`
}

func (f *FollowCmd) Run(ctx *Context) error {
	svc, err := ctx.service(options{})
	if err != nil {
		return err
	}
	bg, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	target, err := svc.Author(bg, f.Author)
	if err != nil {
		return err
	}
	rel := svc.Relationship(*target)
	if err := rel.Load(bg); err != nil {
		return err
	}
	if err := requestFollow(bg, rel, os.Stdout); err != nil {
		return err
	}
	if f.Wait > 0 && rel.State() == follow.Pending {
		wait, cancel := context.WithTimeout(bg, f.Wait)
		defer cancel()
		// returns once accepted or when wait expires
		rel.Poller(ctx.PollInterval, nil).Run(wait)
	}
	fmt.Printf("%s: %s\n", clean(target.String()), rel.State())
	return nil
}

// requestFollow asks to follow. A request the target already holds is
// reported on w and is not an error.
func requestFollow(ctx context.Context, rel *follow.Relationship, w io.Writer) error {
	err := rel.RequestFollow(ctx)
	if errors.Is(err, follow.ErrAlreadyRequested) {
		fmt.Fprintln(w, "request already sent")
		return nil
	}
	return err
}

type UnfollowCmd struct {
	Author string `arg:"" help:"author to stop following"`
}

func (u *UnfollowCmd) Run(ctx *Context) error {
	svc, err := ctx.service(options{})
	if err != nil {
		return err
	}
	target, err := svc.Author(context.Background(), u.Author)
	if err != nil {
		return err
	}
	return svc.Relationship(*target).Unfollow(context.Background())
}

type AcceptCmd struct {
	Author string `arg:"" help:"author whose follow request to accept"`
}

func (a *AcceptCmd) Run(ctx *Context) error {
	svc, err := ctx.service(options{})
	if err != nil {
		return err
	}
	follower, err := svc.Author(context.Background(), a.Author)
	if err != nil {
		return err
	}
	return svc.Accept(context.Background(), *follower)
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/socialdistribution/courier/pages"
)

type InboxCmd struct {
	List  InboxListCmd  `cmd:"" default:"1" help:"List inbox items, newest first."`
	Clear InboxClearCmd `cmd:"" help:"Delete every inbox item."`
}

type InboxListCmd struct {
	Page int `default:"1" help:"page to show"`
	Size int `default:"5" help:"items per page"`
}

func (l *InboxListCmd) Run(ctx *Context) error {
	svc, err := ctx.service(options{pageSize: l.Size})
	if err != nil {
		return err
	}
	items := svc.InboxItems()
	if err := turnTo(context.Background(), items, l.Page); err != nil {
		return err
	}
	snap := items.Snapshot()
	p := printer{w: os.Stdout}
	for _, it := range snap.Items {
		p.item(it)
	}
	footer(snap.Page, len(snap.Items), snap.Total)
	return nil
}

type InboxClearCmd struct{}

func (c *InboxClearCmd) Run(ctx *Context) error {
	svc, err := ctx.service(options{})
	if err != nil {
		return err
	}
	return svc.ClearInbox(context.Background())
}

type FeedCmd struct {
	Following bool `help:"show posts of authors you follow instead of every public post"`
	Page      int  `default:"1" help:"page to show"`
	Size      int  `default:"5" help:"posts per page"`
}

func (f *FeedCmd) Run(ctx *Context) error {
	svc, err := ctx.service(options{pageSize: f.Size})
	if err != nil {
		return err
	}
	posts := svc.PublicPosts()
	if f.Following {
		posts = svc.FollowingPosts()
	}
	if err := turnTo(context.Background(), posts, f.Page); err != nil {
		return err
	}
	snap := posts.Snapshot()
	p := printer{w: os.Stdout}
	for i := range snap.Items {
		p.post(&snap.Items[i])
	}
	footer(snap.Page, len(snap.Items), snap.Total)
	return nil
}

// turnTo loads r and moves it forward to page.
func turnTo[T any](ctx context.Context, r *pages.Reconciler[T], page int) error {
	if err := r.Load(ctx); err != nil {
		return err
	}
	for r.Page() < page {
		if err := r.Next(ctx); err != nil {
			return err
		}
	}
	return nil
}

func footer(page, n int, total *int) {
	if total != nil {
		fmt.Printf("-- page %d, %d of %d\n", page, n, *total)
		return
	}
	fmt.Printf("-- page %d, %d shown\n", page, n)
}

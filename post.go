package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/exp/slog"

	"github.com/socialdistribution/courier/classify"
	"github.com/socialdistribution/courier/media"
	"github.com/socialdistribution/courier/models"
	"github.com/socialdistribution/courier/social"
)

// DraftFlags are shared by post and edit.
type DraftFlags struct {
	Title       string   `required:"" help:"post title"`
	Description string   `required:"" help:"post description"`
	Text        string   `arg:"" optional:"" help:"post body, - to read stdin"`
	Markdown    bool     `help:"treat the text as markdown"`
	Image       []string `help:"attach an image file; only the last is kept" type:"existingfile"`
	DataURL     []string `name:"data-url" help:"attach a data: url image"`
	Visibility  string   `enum:"public,unlisted,friends" default:"public" help:"who can see the post"`
}

func (f *DraftFlags) draft() (social.Draft, error) {
	d := social.Draft{
		Title:       f.Title,
		Description: f.Description,
	}
	visibility, err := models.ParseVisibility(f.Visibility)
	if err != nil {
		return d, err
	}
	d.Visibility = visibility
	d.Text = f.Text
	if d.Text == "-" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return d, err
		}
		d.Text = string(b)
	}
	d.ForceMarkdown = f.Markdown
	for _, path := range f.Image {
		img, err := media.EncodeFile(path)
		if err != nil {
			return d, err
		}
		d.Images = append(d.Images, img)
	}
	for _, u := range f.DataURL {
		img, err := classify.FromDataURL(u)
		if err != nil {
			return d, err
		}
		d.Images = append(d.Images, img)
	}
	return d, nil
}

type PostCmd struct {
	DraftFlags
}

func (p *PostCmd) Run(ctx *Context) error {
	d, err := p.draft()
	if err != nil {
		return err
	}
	svc, err := ctx.service(options{})
	if err != nil {
		return err
	}
	post, err := svc.Publish(context.Background(), d)
	if err != nil {
		return err
	}
	fmt.Println(post.ID)
	return nil
}

type EditCmd struct {
	Post string `arg:"" help:"post to replace"`
	DraftFlags
}

func (e *EditCmd) Run(ctx *Context) error {
	d, err := e.draft()
	if err != nil {
		return err
	}
	svc, err := ctx.service(options{})
	if err != nil {
		return err
	}
	post, err := svc.Edit(context.Background(), e.Post, d)
	if err != nil {
		return err
	}
	printer{w: os.Stdout}.post(post)
	return nil
}

type DeleteCmd struct {
	Post string `arg:"" help:"post to delete"`
}

func (d *DeleteCmd) Run(ctx *Context) error {
	svc, err := ctx.service(options{})
	if err != nil {
		return err
	}
	return svc.Delete(context.Background(), d.Post)
}

type ShareCmd struct {
	Post string `arg:"" help:"post to send to your followers"`
}

func (s *ShareCmd) Run(ctx *Context) error {
	svc, err := ctx.service(options{})
	if err != nil {
		return err
	}
	post, err := svc.Post(context.Background(), s.Post)
	if err != nil {
		return err
	}
	report, err := svc.Share(context.Background(), *post)
	if err != nil {
		return err
	}
	fmt.Printf("delivered %d, rejected %d, failed %d\n", len(report.Delivered()), len(report.Rejected()), len(report.Failed()))
	return report.Err()
}

type LikeCmd struct {
	Post string `arg:"" help:"post to like"`
}

func (l *LikeCmd) Run(ctx *Context) error {
	svc, err := ctx.service(options{})
	if err != nil {
		return err
	}
	post, err := svc.Post(context.Background(), l.Post)
	if err != nil {
		return err
	}
	view := svc.Like(*post)
	if err := view.Refresh(context.Background()); err != nil {
		ctx.Logger.Warn("could not load likes", slog.Any("error", err))
	}
	outcome, err := view.Like(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("%s, %d likes\n", outcome, view.Count().Projected)
	return nil
}

type CommentCmd struct {
	Post     string `arg:"" help:"post to comment on"`
	Text     string `arg:"" help:"the comment"`
	Markdown bool   `help:"treat the comment as markdown"`
}

func (c *CommentCmd) Run(ctx *Context) error {
	svc, err := ctx.service(options{})
	if err != nil {
		return err
	}
	post, err := svc.Post(context.Background(), c.Post)
	if err != nil {
		return err
	}
	comment, err := svc.Comment(context.Background(), post, c.Text, c.Markdown)
	if err != nil {
		return err
	}
	fmt.Println(comment.ID)
	return nil
}

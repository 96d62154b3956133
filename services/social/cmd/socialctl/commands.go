package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/example/orbit/internal/platform/auth"
	"github.com/example/orbit/services/social/internal/domain"
	"github.com/example/orbit/services/social/internal/events"
	"github.com/example/orbit/services/social/internal/thread"
	"github.com/example/orbit/services/social/internal/view"
)

func cmdToken(_ context.Context, _ *env, args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	secret := fs.String("secret", os.Getenv("JWT_SECRET"), "HS256 signing secret")
	role := fs.String("role", "user", "role claim")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	rest, err := parse(fs, args, 1, "[flags] <user_id>")
	if err != nil {
		return err
	}
	if strings.TrimSpace(*secret) == "" {
		return domain.Invalid("token", "JWT_SECRET or -secret is required")
	}
	tok, err := auth.Issue([]byte(*secret), rest[0], *role, *ttl)
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}

func cmdFeed(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("feed", flag.ContinueOnError)
	limit := fs.Int("limit", domain.DefaultPageLimit, "posts per page")
	pages := fs.Int("pages", 1, "pages to load")
	if _, err := parse(fs, args, 0, "[flags]"); err != nil {
		return err
	}
	d, err := e.deps(false)
	if err != nil {
		return err
	}
	v, err := view.OpenFeed(ctx, d, *limit)
	if err != nil {
		return err
	}
	defer v.Close()

	for i := 1; i < *pages && v.HasMore(); i++ {
		if _, err := v.LoadMore(ctx); err != nil {
			return err
		}
	}
	for _, p := range v.Posts() {
		printPost(p, v.Liked(p.ID))
	}
	if v.HasMore() {
		fmt.Println("(more)")
	}
	return nil
}

func cmdPost(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("post", flag.ContinueOnError)
	image := fs.String("image", "", "image file to attach")
	edit := fs.String("edit", "", "replace the content of this post")
	del := fs.String("delete", "", "delete this post")
	rest, err := parse(fs, args, 0, "[flags] <text>")
	if err != nil {
		return err
	}
	d, err := e.deps(false)
	if err != nil {
		return err
	}
	v, err := view.OpenFeed(ctx, d, domain.MaxPageLimit)
	if err != nil {
		return err
	}
	defer v.Close()

	text := strings.Join(rest, " ")
	switch {
	case *del != "":
		if err := v.DeletePost(ctx, *del); err != nil {
			return err
		}
		fmt.Println("deleted", *del)
		return nil
	case *edit != "":
		p, err := v.EditPost(ctx, *edit, text)
		if err != nil {
			return err
		}
		printPost(p, v.Liked(p.ID))
		return nil
	}

	var data []byte
	if *image != "" {
		if data, err = os.ReadFile(*image); err != nil {
			return err
		}
	}
	p, err := v.CreatePost(ctx, text, data)
	if err != nil {
		return err
	}
	printPost(p, false)
	return nil
}

func cmdThread(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("thread", flag.ContinueOnError)
	rest, err := parse(fs, args, 1, "<post_id>")
	if err != nil {
		return err
	}
	d, err := e.deps(false)
	if err != nil {
		return err
	}
	v, err := view.OpenPost(ctx, d, rest[0])
	if err != nil {
		return err
	}
	defer v.Close()
	printPost(v.Post(), v.Liked())
	printThread(v.Thread())
	return nil
}

func cmdComment(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("comment", flag.ContinueOnError)
	parent := fs.String("parent", "", "reply to this comment")
	edit := fs.String("edit", "", "replace the content of this comment")
	del := fs.String("delete", "", "delete this comment and its replies")
	rest, err := parse(fs, args, 1, "[flags] <post_id> <text>")
	if err != nil {
		return err
	}
	d, err := e.deps(false)
	if err != nil {
		return err
	}
	v, err := view.OpenPost(ctx, d, rest[0])
	if err != nil {
		return err
	}
	defer v.Close()

	text := strings.Join(rest[1:], " ")
	switch {
	case *del != "":
		if err := v.DeleteComment(ctx, *del); err != nil {
			return err
		}
		fmt.Printf("deleted %s, %d comments left\n", *del, v.Post().CommentCount)
		return nil
	case *edit != "":
		c, err := v.EditComment(ctx, *edit, text)
		if err != nil {
			return err
		}
		fmt.Println(c.ID)
		return nil
	}

	var parentID *string
	if *parent != "" {
		parentID = parent
	}
	c, err := v.AddComment(ctx, text, parentID)
	if err != nil {
		return err
	}
	fmt.Println(c.ID)
	return nil
}

func cmdLike(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("like", flag.ContinueOnError)
	rest, err := parse(fs, args, 1, "<post_id>")
	if err != nil {
		return err
	}
	d, err := e.deps(false)
	if err != nil {
		return err
	}
	v, err := view.OpenPost(ctx, d, rest[0])
	if err != nil {
		return err
	}
	defer v.Close()

	st, err := v.ToggleLike(ctx)
	if err != nil {
		return err
	}
	verb := "unliked"
	if st.Liked {
		verb = "liked"
	}
	fmt.Printf("%s %s (%d likes)\n", verb, rest[0], st.Likes)
	return nil
}

func cmdWatch(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	rest, err := parse(fs, args, 1, "<post_id>")
	if err != nil {
		return err
	}
	d, err := e.deps(true)
	if err != nil {
		return err
	}
	v, err := view.OpenPost(ctx, d, rest[0])
	if err != nil {
		return err
	}
	defer v.Close()

	printPost(v.Post(), v.Liked())
	printThread(v.Thread())
	d.Bus.Subscribe(func(ev events.Event) {
		switch ev.Kind {
		case events.CommentAdded, events.CommentEdited:
			if ev.Comment != nil {
				fmt.Printf("%s %s: %s\n", ev.Kind, ev.Comment.ID, ev.Comment.Content)
			}
		case events.CommentRemoved:
			fmt.Printf("%s %s (%d)\n", ev.Kind, ev.CommentID, ev.Removed)
		case events.PostEdited:
			if ev.Post != nil {
				fmt.Printf("%s likes=%d comments=%d\n", ev.Kind, ev.Post.Likes, ev.Post.CommentCount)
			}
		case events.PostDeleted:
			fmt.Println("post deleted")
		}
	})

	<-ctx.Done()
	return nil
}

func cmdProfile(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("profile", flag.ContinueOnError)
	limit := fs.Int("limit", domain.DefaultPageLimit, "posts to show")
	follow := fs.Bool("follow", false, "follow or unfollow")
	bio := fs.String("bio", "", "set the bio")
	rename := fs.String("rename", "", "change the username")
	avatar := fs.String("avatar", "", "upload an avatar image")
	rest, err := parse(fs, args, 1, "[flags] <username>")
	if err != nil {
		return err
	}
	d, err := e.deps(false)
	if err != nil {
		return err
	}
	v, err := view.OpenProfile(ctx, d, rest[0], *limit)
	if err != nil {
		return err
	}
	defer v.Close()

	if *follow {
		if _, err := v.ToggleFollow(ctx); err != nil {
			return err
		}
	}
	var u view.ProfileUpdate
	set := false
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "bio":
			u.Bio, set = bio, true
		case "rename":
			u.Username, set = rename, true
		}
	})
	if *avatar != "" {
		if u.Avatar, err = os.ReadFile(*avatar); err != nil {
			return err
		}
		set = true
	}
	if set {
		if _, err := v.UpdateProfile(ctx, u); err != nil {
			return err
		}
	}

	p, s := v.Profile(), v.Stats()
	fmt.Printf("@%s  %s\n", p.Username, v.AvatarSrc())
	if p.Bio != "" {
		fmt.Println(p.Bio)
	}
	fmt.Printf("%d posts  %d followers  %d following", s.Posts, s.Followers, s.Following)
	if v.Following() {
		fmt.Print("  (following)")
	}
	fmt.Println()
	for _, post := range v.Posts() {
		printPost(post, v.Liked(post.ID))
	}
	return nil
}

func cmdUsername(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("username", flag.ContinueOnError)
	rest, err := parse(fs, args, 1, "<username>")
	if err != nil {
		return err
	}
	d, err := e.deps(false)
	if err != nil {
		return err
	}
	p, err := view.SetUsername(ctx, d, rest[0])
	if err != nil {
		if domain.KindOf(err) == domain.KindUnauthorized {
			return errors.New("set SOCIAL_TOKEN first")
		}
		return err
	}
	fmt.Printf("@%s\n", p.Username)
	return nil
}

func printPost(p domain.Post, liked bool) {
	heart := " "
	if liked {
		heart = "*"
	}
	fmt.Printf("%s %s  by %s  %s  likes=%d comments=%d\n", heart, p.ID, byline(p.UserID, p.Author),
		p.CreatedAt.Local().Format(time.DateTime), p.Likes, p.CommentCount)
	fmt.Printf("    %s\n", p.Content)
	if p.ImageURL != "" {
		fmt.Printf("    [image] %s\n", p.ImageURL)
	}
}

func printThread(f thread.Forest) {
	if thread.Len(f) == 0 {
		fmt.Println("  no comments yet")
		return
	}
	thread.Walk(f, func(n *thread.Node, depth int) bool {
		c := n.Comment
		edited := ""
		if c.UpdatedAt != nil {
			edited = " (edited)"
		}
		fmt.Printf("%s- %s %s%s: %s\n", strings.Repeat("  ", depth+1), c.ID, byline(c.UserID, c.Author), edited, c.Content)
		return true
	})
}

// byline names an author by username, falling back to the user id for
// users without a profile.
func byline(userID string, a *domain.Author) string {
	if a == nil || a.Username == "" {
		return userID
	}
	return "@" + a.Username
}

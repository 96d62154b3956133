package view

import (
	"context"
	"errors"
	"strings"

	"github.com/example/orbit/internal/platform/retry"
	"github.com/example/orbit/services/social/internal/domain"
	"github.com/example/orbit/services/social/internal/events"
	"github.com/example/orbit/services/social/internal/objects"
	"github.com/example/orbit/services/social/internal/realtime"
	"github.com/example/orbit/services/social/internal/reconcile"
	"github.com/example/orbit/services/social/internal/store"
)

// Stats are the counters shown on a profile.
type Stats struct {
	Posts     int `json:"posts"`
	Followers int `json:"followers"`
	Following int `json:"following"`
}

// ProfileView is a user's profile page with their posts.
type ProfileView struct {
	base
	tracker *reconcile.Tracker
	likes   *reconcile.LikeToggler

	// guarded by base.mu
	profile   domain.Profile
	posts     []domain.Post
	stats     Stats
	following bool
}

// OpenProfile loads the profile of username with up to limit of their
// newest posts.
func OpenProfile(ctx context.Context, d Deps, username string, limit int) (*ProfileView, error) {
	const op = "profile.open"
	user, err := d.viewer(ctx)
	if err != nil {
		return nil, err
	}
	v := &ProfileView{base: base{d: d, user: user}, tracker: reconcile.NewTracker()}
	v.likes = reconcile.NewLikeToggler(d.Stores.Likes, d.Stores.Posts, v.tracker)

	var (
		profile   domain.Profile
		posts     []domain.Post
		stats     Stats
		counts    domain.FollowCounts
		liked     []string
		following bool
	)
	username = strings.ToLower(strings.TrimSpace(username))
	err = retry.Do(ctx, d.loadPolicy(), func(ctx context.Context) error {
		var err error
		if profile, err = d.Stores.Profiles.GetByUsername(ctx, username); err != nil {
			return err
		}
		if posts, err = d.Stores.Posts.ListByAuthor(ctx, profile.ID, domain.Page{Limit: limit}); err != nil {
			return err
		}
		if stats.Posts, err = d.Stores.Posts.CountByAuthor(ctx, profile.ID); err != nil {
			return err
		}
		if counts, err = d.Stores.Follows.Counts(ctx, profile.ID); err != nil {
			return err
		}
		if user.ID == "" {
			return nil
		}
		if liked, err = d.Stores.Likes.ListByUser(ctx, user.ID); err != nil {
			return err
		}
		if user.ID != profile.ID {
			following, err = d.Stores.Follows.IsFollowing(ctx, user.ID, profile.ID)
		}
		return err
	})
	if err != nil {
		return nil, domain.Wrap(op, err)
	}
	stats.Followers, stats.Following = counts.Followers, counts.Following
	v.profile, v.posts, v.stats, v.following = profile, posts, stats, following
	v.likes.Reset(liked)

	if err := v.watch(ctx, realtime.TablePosts, nil, realtime.Filter{"user_id": profile.ID}, v.ApplyChange); err != nil {
		v.Close()
		return nil, err
	}
	if err := v.watch(ctx, realtime.TableProfiles, nil, realtime.Filter{"id": profile.ID}, v.ApplyChange); err != nil {
		v.Close()
		return nil, err
	}
	return v, nil
}

func (v *ProfileView) Profile() domain.Profile {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.profile
}

// AvatarSrc is the avatar as a loadable URL.
func (v *ProfileView) AvatarSrc() string {
	p := v.Profile()
	if v.d.Objects == nil {
		if p.AvatarURL == "" {
			return objects.DefaultAvatar
		}
		return p.AvatarURL
	}
	return objects.AvatarURL(v.d.Objects, p.AvatarURL)
}

func (v *ProfileView) Posts() []domain.Post {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]domain.Post(nil), v.posts...)
}

func (v *ProfileView) Stats() Stats {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stats
}

// Following reports whether the viewer follows this profile.
func (v *ProfileView) Following() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.following
}

// Own reports whether the viewer is looking at their own profile.
func (v *ProfileView) Own() bool {
	return v.user.ID != "" && v.user.ID == v.Profile().ID
}

func (v *ProfileView) Liked(postID string) bool {
	return v.likes.Liked(postID)
}

// ToggleFollow follows or unfollows the profile. The button flips at once
// and flips back if the write fails.
func (v *ProfileView) ToggleFollow(ctx context.Context) (bool, error) {
	const op = "follow"
	if err := v.requireUser(op); err != nil {
		return false, v.fail(op, err)
	}
	target := v.Profile().ID
	if target == v.user.ID {
		return false, v.fail(op, domain.Invalid(op, "you cannot follow yourself"))
	}
	m, err := v.tracker.Begin(reconcile.FollowTarget(target), "")
	if err != nil {
		return v.Following(), v.fail(op, err)
	}

	var was bool
	v.update(func() {
		was = v.following
		v.following = !was
		v.stats.Followers = max(v.stats.Followers+followDelta(!was), 0)
	})
	v.publish(events.Event{Kind: events.FollowToggled, UserID: target, Following: !was})

	if was {
		err = v.d.Stores.Follows.Unfollow(ctx, v.user.ID, target)
	} else {
		err = v.d.Stores.Follows.Follow(ctx, v.user.ID, target)
	}
	if err != nil {
		_ = m.RollBack()
		v.update(func() {
			v.following = was
			v.stats.Followers = max(v.stats.Followers-followDelta(!was), 0)
		})
		v.publish(events.Event{Kind: events.FollowToggled, UserID: target, Following: was})
		return was, v.fail(op, err)
	}
	_ = m.Confirm()

	if counts, err := v.d.Stores.Follows.Counts(ctx, target); err == nil {
		v.update(func() {
			v.stats.Followers, v.stats.Following = counts.Followers, counts.Following
		})
	}
	return !was, nil
}

func followDelta(following bool) int {
	if following {
		return 1
	}
	return -1
}

// ProfileUpdate lists the profile fields to change. Nil fields and an empty
// Avatar keep their current value.
type ProfileUpdate struct {
	Username *string
	Bio      *string
	Avatar   []byte
}

// UpdateProfile changes the viewer's own profile. Input is validated
// before anything is sent; a taken username fails with
// store.ErrUsernameTaken.
func (v *ProfileView) UpdateProfile(ctx context.Context, u ProfileUpdate) (domain.Profile, error) {
	const op = "profile.update"
	if !v.Own() {
		return domain.Profile{}, v.fail(op, domain.Unauthorized(op, "you can only edit your own profile"))
	}
	m, err := v.tracker.Begin(reconcile.ProfileTarget(v.user.ID), "")
	if err != nil {
		return domain.Profile{}, v.fail(op, err)
	}
	saved, err := saveProfile(ctx, v.d, v.Profile(), u)
	if err != nil {
		_ = m.RollBack()
		return domain.Profile{}, v.fail(op, err)
	}
	_ = m.Confirm()
	v.update(func() { v.profile = saved })
	return saved, nil
}

// SetUsername changes the viewer's username.
func (v *ProfileView) SetUsername(ctx context.Context, username string) (domain.Profile, error) {
	return v.UpdateProfile(ctx, ProfileUpdate{Username: &username})
}

// UploadAvatar stores data in the avatars bucket and points the profile at
// it.
func (v *ProfileView) UploadAvatar(ctx context.Context, data []byte) (domain.Profile, error) {
	const op = "profile.avatar"
	if len(data) == 0 {
		return domain.Profile{}, v.fail(op, domain.Invalid(op, "file is empty"))
	}
	return v.UpdateProfile(ctx, ProfileUpdate{Avatar: data})
}

// SetUsername creates or renames the signed-in user's profile. New users
// call it before any profile page exists for them.
func SetUsername(ctx context.Context, d Deps, username string) (domain.Profile, error) {
	const op = "profile.username"
	user, err := d.viewer(ctx)
	if err != nil {
		return domain.Profile{}, err
	}
	if user.ID == "" {
		return domain.Profile{}, domain.Unauthorized(op, "sign in first")
	}
	current, err := d.Stores.Profiles.Get(ctx, user.ID)
	switch {
	case domain.KindOf(err) == domain.KindNotFound:
		current = domain.Profile{ID: user.ID}
	case err != nil:
		return domain.Profile{}, domain.Wrap(op, err)
	}
	saved, err := saveProfile(ctx, d, current, ProfileUpdate{Username: &username})
	if err != nil {
		d.Bus.Failed(op, err)
		return domain.Profile{}, domain.Wrap(op, err)
	}
	return saved, nil
}

// saveProfile validates u against current, uploads the avatar and upserts.
func saveProfile(ctx context.Context, d Deps, current domain.Profile, u ProfileUpdate) (domain.Profile, error) {
	const op = "profile.update"
	next := current
	if u.Username != nil {
		next.Username = strings.ToLower(strings.TrimSpace(*u.Username))
	}
	if err := domain.ValidateUsername(op, next.Username); err != nil {
		return domain.Profile{}, err
	}
	if u.Bio != nil {
		bio, err := domain.CleanBio(op, *u.Bio)
		if err != nil {
			return domain.Profile{}, err
		}
		next.Bio = bio
	}
	if len(u.Avatar) > 0 {
		if d.Objects == nil {
			return domain.Profile{}, domain.Invalid(op, "avatar uploads are not available")
		}
		if len(u.Avatar) > objects.MaxObjectSize {
			return domain.Profile{}, domain.Invalid(op, "avatar exceeds %d bytes", objects.MaxObjectSize)
		}
		path, err := d.Objects.Put(ctx, objects.BucketAvatars, current.ID, u.Avatar)
		if err != nil {
			return domain.Profile{}, err
		}
		next.AvatarURL = path
	}

	saved, err := d.Stores.Profiles.Upsert(ctx, next)
	if errors.Is(err, store.ErrUsernameTaken) {
		return domain.Profile{}, store.ErrUsernameTaken
	}
	return saved, err
}

// ToggleLike likes or unlikes one of the profile's posts.
func (v *ProfileView) ToggleLike(ctx context.Context, postID string) (reconcile.LikeState, error) {
	return toggleLike(ctx, &v.base, v.likes, &v.posts, postID)
}

// ApplyChange merges realtime changes to the profile and its posts.
func (v *ProfileView) ApplyChange(c realtime.Change) {
	switch c.Table {
	case realtime.TableProfiles:
		p, ok := decode[domain.Profile](&v.base, c)
		if !ok {
			return
		}
		v.update(func() {
			if p.ID == v.profile.ID {
				v.profile = p
			}
		})
	case realtime.TablePosts:
		p, ok := decode[domain.Post](&v.base, c)
		if !ok || p.UserID != v.Profile().ID {
			return
		}
		var e *events.Event
		v.update(func() {
			before := len(v.posts)
			v.posts, e = mergePost(v.posts, c.Type, p, v.tracker, true)
			v.stats.Posts = max(v.stats.Posts+len(v.posts)-before, 0)
		})
		if e != nil {
			v.publish(*e)
		}
	}
}

package store

import (
	"slices"
	"sort"
	"time"
)

// UserRefs is the reference-holding part of a user record.
type UserRefs struct {
	ID        string
	Posts     []string
	Followers []string
	Following []string
}

// PostRef is the ownership part of a post record.
type PostRef struct {
	ID        string
	UserID    string
	CreatedAt time.Time
}

// PlanRepair computes corrected reference lists for every user whose lists
// disagree with the rest of the data. It does not modify its arguments.
//
// The follower's Following list decides whether an edge exists. Older
// deployments saved the follower first on both follow and unfollow, so an
// interrupted follow leaves only the Following entry and an interrupted unfollow
// leaves only the Followers entry; keeping Following completes the first and
// finishes the second.
//
// Rules, applied in order:
//   - follow entries pointing at missing users, at the user itself, or repeated are dropped;
//   - post entries pointing at missing posts, at posts owned by someone else, or repeated are dropped;
//   - Followers entries whose follower does not list the user in Following are dropped;
//   - Following entries missing from the followee's Followers are added there;
//   - owned posts missing from the owner's list are appended in creation order.
func PlanRepair(users []UserRefs, posts []PostRef) ([]UserRefs, RepairReport) {
	var report RepairReport

	byID := make(map[string]*UserRefs, len(users))
	order := make([]string, 0, len(users))
	for _, u := range users {
		c := UserRefs{
			ID:        u.ID,
			Posts:     slices.Clone(u.Posts),
			Followers: slices.Clone(u.Followers),
			Following: slices.Clone(u.Following),
		}
		byID[u.ID] = &c
		order = append(order, u.ID)
	}
	sort.Strings(order)

	owner := make(map[string]string, len(posts))
	for _, p := range posts {
		owner[p.ID] = p.UserID
	}

	cleanEdges := func(self string, ids []string) ([]string, int) {
		seen := make(map[string]bool, len(ids))
		kept := ids[:0:0]
		for _, id := range ids {
			if _, ok := byID[id]; !ok || id == self || seen[id] {
				continue
			}
			seen[id] = true
			kept = append(kept, id)
		}
		return kept, len(ids) - len(kept)
	}

	for _, id := range order {
		u := byID[id]
		var n int
		u.Following, n = cleanEdges(id, u.Following)
		report.DanglingEdgesRemoved += n
		u.Followers, n = cleanEdges(id, u.Followers)
		report.DanglingEdgesRemoved += n

		seen := make(map[string]bool, len(u.Posts))
		kept := u.Posts[:0:0]
		for _, pid := range u.Posts {
			if owner[pid] != id || seen[pid] {
				continue
			}
			seen[pid] = true
			kept = append(kept, pid)
		}
		report.PostRefsRemoved += len(u.Posts) - len(kept)
		u.Posts = kept
	}

	for _, id := range order {
		u := byID[id]
		kept := u.Followers[:0:0]
		for _, fid := range u.Followers {
			if slices.Contains(byID[fid].Following, id) {
				kept = append(kept, fid)
			}
		}
		report.StaleFollowersRemoved += len(u.Followers) - len(kept)
		u.Followers = kept
	}
	for _, id := range order {
		u := byID[id]
		for _, fid := range u.Following {
			if f := byID[fid]; !slices.Contains(f.Followers, id) {
				f.Followers = append(f.Followers, id)
				report.FollowEdgesAdded++
			}
		}
	}

	sorted := slices.Clone(posts)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})
	for _, p := range sorted {
		u, ok := byID[p.UserID]
		if !ok || slices.Contains(u.Posts, p.ID) {
			continue
		}
		u.Posts = append(u.Posts, p.ID)
		report.PostRefsAdded++
	}

	var changed []UserRefs
	for _, orig := range users {
		fixed := byID[orig.ID]
		if !slices.Equal(orig.Posts, fixed.Posts) ||
			!slices.Equal(orig.Followers, fixed.Followers) ||
			!slices.Equal(orig.Following, fixed.Following) {
			changed = append(changed, *fixed)
		}
	}
	return changed, report
}

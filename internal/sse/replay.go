package sse

// replay is a fixed-size ring of the most recent frames.
type replay struct {
	frames []frame
	start  int
	n      int
}

func newReplay(size int) *replay {
	return &replay{frames: make([]frame, size)}
}

func (r *replay) push(f frame) {
	if len(r.frames) == 0 {
		return
	}
	i := (r.start + r.n) % len(r.frames)
	r.frames[i] = f
	if r.n < len(r.frames) {
		r.n++
	} else {
		r.start = (r.start + 1) % len(r.frames)
	}
}

// after returns the frames pushed after the one with id lastID, oldest first.
// An empty or evicted id yields nothing.
func (r *replay) after(lastID string) []frame {
	if lastID == "" {
		return nil
	}
	for k := 0; k < r.n; k++ {
		if r.frames[(r.start+k)%len(r.frames)].id != lastID {
			continue
		}
		out := make([]frame, 0, r.n-k-1)
		for j := k + 1; j < r.n; j++ {
			out = append(out, r.frames[(r.start+j)%len(r.frames)])
		}
		return out
	}
	return nil
}

package points

import "github.com/pkg/errors"

// Window is the sliding keyframe arena: an insertion-ordered map keyed by
// each keyframe's monotonically increasing GlobalFrameNum, replacing the
// source's raw pointer-based keyframe list so points can resolve their host
// by lookup instead of holding a pointer directly into it.
type Window struct {
	frames map[int64]*KeyFrame
	order  []int64
}

// NewWindow returns an empty keyframe window.
func NewWindow() *Window {
	return &Window{frames: make(map[int64]*KeyFrame)}
}

// Insert adds kf to the window, keyed by its GlobalFrameNum. GlobalFrameNum
// must be strictly greater than every id already present.
func (w *Window) Insert(kf *KeyFrame) error {
	if len(w.order) > 0 && kf.GlobalFrameNum <= w.order[len(w.order)-1] {
		return errors.Errorf("keyframe id %d is not greater than the last inserted id %d",
			kf.GlobalFrameNum, w.order[len(w.order)-1])
	}
	w.frames[kf.GlobalFrameNum] = kf
	w.order = append(w.order, kf.GlobalFrameNum)
	return nil
}

// Get resolves id to its keyframe, or nil if not present (e.g. already
// marginalized).
func (w *Window) Get(id int64) *KeyFrame { return w.frames[id] }

// Len returns the number of keyframes currently in the window.
func (w *Window) Len() int { return len(w.order) }

// Last returns the most recently inserted keyframe, in O(1).
func (w *Window) Last() *KeyFrame {
	if len(w.order) == 0 {
		return nil
	}
	return w.frames[w.order[len(w.order)-1]]
}

// LastButOne returns the second-most recently inserted keyframe, in O(1).
func (w *Window) LastButOne() *KeyFrame {
	if len(w.order) < 2 {
		return nil
	}
	return w.frames[w.order[len(w.order)-2]]
}

// First returns the oldest keyframe still in the window, in O(1).
func (w *Window) First() *KeyFrame {
	if len(w.order) == 0 {
		return nil
	}
	return w.frames[w.order[0]]
}

// All returns every keyframe in insertion order.
func (w *Window) All() []*KeyFrame {
	out := make([]*KeyFrame, len(w.order))
	for i, id := range w.order {
		out[i] = w.frames[id]
	}
	return out
}

// Marginalize removes the oldest keyframe from the window and returns it,
// so the caller can emit its surviving points through a cloud.Observer
// before discarding it.
func (w *Window) Marginalize() *KeyFrame {
	if len(w.order) == 0 {
		return nil
	}
	id := w.order[0]
	kf := w.frames[id]
	delete(w.frames, id)
	w.order = w.order[1:]
	return kf
}

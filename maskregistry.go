package mapshine

import "github.com/hajimehoshi/ebiten/v2"

// MaskRegistry maps mask identifiers to their current textures and fans
// out rebinds to subscribers. Effects that depend on a mask subscribe once
// at initialize; the callback fires synchronously if the mask is already
// bound and again on every Publish, so an effect that started inert
// re-arms itself the moment its mask appears.
type MaskRegistry struct {
	masks       map[string]*ebiten.Image
	subscribers map[string][]maskSub
	nextID      int
}

type maskSub struct {
	id int
	fn func(*ebiten.Image)
}

// NewMaskRegistry returns an empty registry.
func NewMaskRegistry() *MaskRegistry {
	return &MaskRegistry{
		masks:       make(map[string]*ebiten.Image),
		subscribers: make(map[string][]maskSub),
	}
}

// Get returns the texture bound to id, or nil when absent.
func (r *MaskRegistry) Get(id string) *ebiten.Image {
	return r.masks[id]
}

// Publish binds tex to id and notifies subscribers. Publishing nil unbinds
// the mask; subscribers are told so they can go inert.
func (r *MaskRegistry) Publish(id string, tex *ebiten.Image) {
	if tex == nil {
		delete(r.masks, id)
	} else {
		r.masks[id] = tex
	}
	for _, sub := range r.subscribers[id] {
		sub.fn(tex)
	}
}

// Subscribe registers fn for rebinds of id and returns the unsubscribe
// function. If the mask is already bound, fn is invoked synchronously
// before Subscribe returns.
func (r *MaskRegistry) Subscribe(id string, fn func(*ebiten.Image)) (off func()) {
	r.nextID++
	subID := r.nextID
	r.subscribers[id] = append(r.subscribers[id], maskSub{id: subID, fn: fn})

	if tex, ok := r.masks[id]; ok {
		fn(tex)
	}

	return func() {
		subs := r.subscribers[id]
		for i, sub := range subs {
			if sub.id == subID {
				r.subscribers[id] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

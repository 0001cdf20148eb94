package player

import (
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// subjectNamespace derives stable player ids from non-UUID subjects.
var subjectNamespace = uuid.MustParse("5d1c2d47-8d0b-4b8e-9a53-0f4e4f1f7a11")

// IDFor returns the player id for an auth subject: the subject itself when
// it is a UUID, otherwise a name-based UUID derived from it.
func IDFor(subject string) uuid.UUID {
	subject = strings.TrimSpace(subject)
	if id, err := uuid.Parse(subject); err == nil {
		return id
	}
	return uuid.NewSHA1(subjectNamespace, []byte(subject))
}

type Directory struct {
	log *slog.Logger

	mu      sync.RWMutex
	players map[uuid.UUID]*Player
}

func NewDirectory(logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{log: logger, players: map[uuid.UUID]*Player{}}
}

func (d *Directory) Get(subject string) (*Player, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.players[IDFor(subject)]
	return p, ok
}

// Join returns the player for subject, creating it on first sight.
func (d *Directory) Join(subject, name string) *Player {
	id := IDFor(subject)
	d.mu.RLock()
	p, ok := d.players[id]
	d.mu.RUnlock()
	if ok {
		return p
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.players[id]; ok {
		return p
	}
	if strings.TrimSpace(name) == "" {
		name = strings.TrimSpace(subject)
	}
	p = New(id, name)
	d.players[id] = p
	d.log.Info("player joined", "player_id", id.String(), "name", name)
	return p
}

// Leave removes the player and reports whether it was present.
func (d *Directory) Leave(subject string) bool {
	id := IDFor(subject)
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.players[id]; !ok {
		return false
	}
	delete(d.players, id)
	return true
}

func (d *Directory) All() []*Player {
	d.mu.RLock()
	out := make([]*Player, 0, len(d.players))
	for _, p := range d.players {
		out = append(out, p)
	}
	d.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

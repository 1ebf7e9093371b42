package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	v1 "condoadmin/pkg/api/v1"

	"golang.org/x/crypto/bcrypt"
)

var ErrUnknownCollection = errors.New("unknown collection")

type account struct {
	profile v1.UserProfile
	hash    []byte
}

// SeedUser is a login the dev API accepts.
type SeedUser struct {
	Profile  v1.UserProfile
	Password string
}

// LogEntry mirrors one row of the platform's activity log (bitácora).
type LogEntry struct {
	ID        int64     `json:"id"`
	Accion    string    `json:"accion"`
	Entidad   string    `json:"entidad"`
	Status    int       `json:"status"`
	Usuario   string    `json:"usuario,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Directory is the dev API's in-memory data: accounts, a few read-only
// collections and the activity log.
type Directory struct {
	mu          sync.RWMutex
	accounts    map[string]*account
	byID        map[int64]*account
	collections map[string][]map[string]any
	log         []LogEntry
}

func DefaultSeed() []SeedUser {
	rol := int64(1)
	unidad := int64(1)
	return []SeedUser{
		{
			Profile:  v1.UserProfile{ID: 1, Username: "admin", Email: "admin@condominio.bo", FirstName: "Admin", LastName: "Condominio", Rol: &rol},
			Password: "admin123",
		},
		{
			Profile:  v1.UserProfile{ID: 2, Username: "residente", Email: "residente@condominio.bo", FirstName: "Rosa", LastName: "Quispe", UnidadHabitacional: &unidad},
			Password: "residente123",
		},
	}
}

// NewDirectory hashes the seed passwords with the given bcrypt cost.
func NewDirectory(seed []SeedUser, cost int) (*Directory, error) {
	d := &Directory{
		accounts: make(map[string]*account),
		byID:     make(map[int64]*account),
		collections: map[string][]map[string]any{
			"roles": {
				{"id": 1, "nombre": "Administrador", "descripcion": "Acceso total"},
				{"id": 2, "nombre": "Residente", "descripcion": "Propietario o inquilino"},
			},
			"privileges": {
				{"id": 1, "nombre": "Gestionar usuarios", "codigo": "users.manage"},
				{"id": 2, "nombre": "Ver cuotas", "codigo": "cuotas.view"},
			},
			"unidades": {
				{"id": 1, "numero": "101", "piso": "1", "torre": "A", "metraje": "84.50"},
				{"id": 2, "numero": "202", "piso": "2", "torre": "B", "metraje": "102.00"},
			},
			"cuotas": {
				{"id": 1, "unidad_habitacional": 1, "monto": "350.00", "tipo": "ordinaria", "estado": "pendiente"},
				{"id": 2, "unidad_habitacional": 2, "monto": "120.00", "tipo": "extraordinaria", "estado": "pagada"},
			},
		},
	}
	for _, s := range seed {
		hash, err := bcrypt.GenerateFromPassword([]byte(s.Password), cost)
		if err != nil {
			return nil, err
		}
		acc := &account{profile: s.Profile, hash: hash}
		d.accounts[s.Profile.Username] = acc
		d.byID[s.Profile.ID] = acc
	}
	return d, nil
}

// Authenticate returns the profile when the password matches.
func (d *Directory) Authenticate(username, password string) (*v1.UserProfile, bool) {
	d.mu.RLock()
	acc, ok := d.accounts[username]
	d.mu.RUnlock()
	if !ok {
		// burn comparable time so unknown users are not distinguishable
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$0000000000000000000000000000000000000000000000000000"), []byte(password))
		return nil, false
	}
	if bcrypt.CompareHashAndPassword(acc.hash, []byte(password)) != nil {
		return nil, false
	}
	p := acc.profile
	return &p, true
}

func (d *Directory) Profile(id int64) (*v1.UserProfile, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	acc, ok := d.byID[id]
	if !ok {
		return nil, false
	}
	p := acc.profile
	return &p, true
}

func (d *Directory) Users() []v1.UserProfile {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]v1.UserProfile, 0, len(d.byID))
	for _, acc := range d.byID {
		out = append(out, acc.profile)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (d *Directory) Collection(_ context.Context, name string) ([]map[string]any, error) {
	if name == "users" {
		users := d.Users()
		out := make([]map[string]any, 0, len(users))
		for _, u := range users {
			out = append(out, map[string]any{"id": u.ID, "username": u.Username, "email": u.Email})
		}
		return out, nil
	}
	if name == "bitacora" {
		d.mu.RLock()
		defer d.mu.RUnlock()
		out := make([]map[string]any, 0, len(d.log))
		for _, e := range d.log {
			out = append(out, map[string]any{
				"id": e.ID, "accion": e.Accion, "entidad": e.Entidad,
				"status": e.Status, "usuario": e.Usuario, "created_at": e.CreatedAt,
			})
		}
		return out, nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	items, ok := d.collections[name]
	if !ok {
		return nil, ErrUnknownCollection
	}
	return append([]map[string]any(nil), items...), nil
}

// Record appends to the activity log.
func (d *Directory) Record(accion string, status int, username string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log = append(d.log, LogEntry{
		ID:        int64(len(d.log) + 1),
		Accion:    accion,
		Entidad:   "AUTH",
		Status:    status,
		Usuario:   username,
		CreatedAt: time.Now().UTC(),
	})
}

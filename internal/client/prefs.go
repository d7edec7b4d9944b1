package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrPrefNotFound indica que la clave nunca se escribió
var ErrPrefNotFound = errors.New("preference not found")

// ErrClosed lo devuelve Preferences después del logout
var ErrClosed = errors.New("preferences closed")

// Nombres de las preferencias guardadas por usuario
const (
	PrefCompanyName = "companyName"
	PrefCompanyLogo = "companyLogo"
	PrefSignature   = "signature"
	PrefTheme       = "theme"
	PrefTemplate    = "template"
	PrefDraft       = "draft"
)

type snapshot struct {
	Version   int                        `json:"version"`
	Values    map[string]json.RawMessage `json:"values"`
	UpdatedAt time.Time                  `json:"updatedAt"`
}

// FileKV es un almacén clave/valor en un archivo JSON. Cada escritura reescribe el archivo.
type FileKV struct {
	mu   sync.RWMutex
	file *os.File
	snap *snapshot
}

// OpenFileKV abre o crea el almacén en path
func OpenFileKV(path string) (*FileKV, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, err
	}
	kv := &FileKV{file: f}
	if err := kv.load(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return kv, nil
}

// Close cierra el archivo
func (kv *FileKV) Close() error { return kv.file.Close() }

func (kv *FileKV) load() error {
	info, err := kv.file.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		kv.snap = &snapshot{Version: 1, Values: map[string]json.RawMessage{}, UpdatedAt: time.Now()}
		return kv.flushLocked()
	}
	var snap snapshot
	if err := json.NewDecoder(kv.file).Decode(&snap); err != nil {
		return err
	}
	if snap.Values == nil {
		snap.Values = map[string]json.RawMessage{}
	}
	kv.snap = &snap
	return nil
}

func (kv *FileKV) flushLocked() error {
	if _, err := kv.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	enc := json.NewEncoder(kv.file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(kv.snap); err != nil {
		return err
	}
	pos, _ := kv.file.Seek(0, io.SeekCurrent)
	if err := kv.file.Truncate(pos); err != nil {
		return err
	}
	return kv.file.Sync()
}

// Get decodifica en v el valor guardado bajo key
func (kv *FileKV) Get(key string, v any) error {
	kv.mu.RLock()
	raw, ok := kv.snap.Values[key]
	kv.mu.RUnlock()
	if !ok {
		return ErrPrefNotFound
	}
	return json.Unmarshal(raw, v)
}

// Put guarda v bajo key
func (kv *FileKV) Put(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return kv.withWrite(ctx, func(s *snapshot) {
		s.Values[key] = raw
	})
}

// Remove borra key; si no existe no hace nada
func (kv *FileKV) Remove(ctx context.Context, key string) error {
	return kv.withWrite(ctx, func(s *snapshot) {
		delete(s.Values, key)
	})
}

func (kv *FileKV) withWrite(ctx context.Context, fn func(*snapshot)) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	fn(kv.snap)
	kv.snap.UpdatedAt = time.Now()
	return kv.flushLocked()
}

// Preferences es la vista de un usuario sobre el almacén. Las claves se guardan
// como "<owner>_<name>", así un usuario nunca ve los valores de otro.
type Preferences struct {
	kv     *FileKV
	owner  string
	mu     sync.Mutex
	closed bool
}

// NewPreferences limita kv al usuario owner
func NewPreferences(kv *FileKV, owner string) *Preferences {
	return &Preferences{kv: kv, owner: owner}
}

// Owner devuelve el prefijo de las claves
func (p *Preferences) Owner() string { return p.owner }

func (p *Preferences) key(name string) string {
	return p.owner + "_" + name
}

func (p *Preferences) check() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	return nil
}

// Get decodifica en v el valor del usuario para name
func (p *Preferences) Get(name string, v any) error {
	if err := p.check(); err != nil {
		return err
	}
	return p.kv.Get(p.key(name), v)
}

// String devuelve el texto guardado para name, o def si no existe
func (p *Preferences) String(name, def string) string {
	var s string
	if err := p.Get(name, &s); err != nil || s == "" {
		return def
	}
	return s
}

// Put guarda v como valor del usuario para name
func (p *Preferences) Put(ctx context.Context, name string, v any) error {
	if err := p.check(); err != nil {
		return err
	}
	return p.kv.Put(ctx, p.key(name), v)
}

// Remove borra el valor del usuario para name
func (p *Preferences) Remove(ctx context.Context, name string) error {
	if err := p.check(); err != nil {
		return err
	}
	return p.kv.Remove(ctx, p.key(name))
}

// Branding lee los datos de empresa que usan los borradores nuevos
func (p *Preferences) Branding() Branding {
	return Branding{
		CompanyName: p.String(PrefCompanyName, DefaultCompanyName),
		CompanyLogo: p.String(PrefCompanyLogo, ""),
		Signature:   p.String(PrefSignature, ""),
	}
}

// Close desconecta la vista; los valores quedan en disco para el próximo login
func (p *Preferences) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

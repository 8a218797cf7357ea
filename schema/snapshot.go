package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/vmihailenco/msgpack/v5"
)

// Wire structs for snapshot serialization. Kept separate from the model
// so the encoding stays stable when the in-memory representation grows.
type snapshotWire struct {
	Entities []entityWire `msgpack:"entities"`
}

type entityWire struct {
	Name      string         `msgpack:"name"`
	Fields    []fieldWire    `msgpack:"fields"`
	Relations []relationWire `msgpack:"relations"`
}

type fieldWire struct {
	Name         string   `msgpack:"name"`
	Type         string   `msgpack:"type"`
	Nullable     bool     `msgpack:"nullable"`
	Unique       bool     `msgpack:"unique"`
	Identity     bool     `msgpack:"identity"`
	Default      int      `msgpack:"default"`
	DefaultStr   *string  `msgpack:"default_str,omitempty"`
	DefaultInt   *int64   `msgpack:"default_int,omitempty"`
	DefaultFloat *float64 `msgpack:"default_float,omitempty"`
	DefaultBool  *bool    `msgpack:"default_bool,omitempty"`
	OnUpdateNow  bool     `msgpack:"on_update_now"`
}

type relationWire struct {
	Name            string `msgpack:"name"`
	Owner           string `msgpack:"owner"`
	ForeignKey      string `msgpack:"foreign_key"`
	Target          string `msgpack:"target"`
	TargetField     string `msgpack:"target_field"`
	OneToOne        bool   `msgpack:"one_to_one"`
	OnDeleteCascade bool   `msgpack:"on_delete_cascade"`
}

// EncodeSnapshot serializes a snapshot into its canonical msgpack form:
// entities, fields, and relations sorted by name so that equal schemas
// always produce byte-identical encodings.
func EncodeSnapshot(s *Snapshot) ([]byte, error) {
	wire := snapshotWire{}
	for _, e := range s.Entities {
		ew := entityWire{Name: e.Name}
		for _, f := range e.Fields {
			ew.Fields = append(ew.Fields, fieldToWire(f))
		}
		sort.Slice(ew.Fields, func(i, j int) bool { return ew.Fields[i].Name < ew.Fields[j].Name })
		for _, r := range e.Relations {
			ew.Relations = append(ew.Relations, relationWire(*r))
		}
		sort.Slice(ew.Relations, func(i, j int) bool {
			return ew.Relations[i].ForeignKey < ew.Relations[j].ForeignKey
		})
		wire.Entities = append(wire.Entities, ew)
	}
	sort.Slice(wire.Entities, func(i, j int) bool { return wire.Entities[i].Name < wire.Entities[j].Name })

	data, err := msgpack.Marshal(&wire)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot rebuilds a snapshot from its msgpack encoding.
// Entities come back in canonical (name-sorted) order.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var wire snapshotWire
	if err := msgpack.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	snap := &Snapshot{index: make(map[string]*Entity)}
	for _, ew := range wire.Entities {
		ent := &Entity{Name: ew.Name, fields: make(map[string]*Field)}
		for _, fw := range ew.Fields {
			f := fieldFromWire(fw)
			ent.Fields = append(ent.Fields, f)
			ent.fields[f.Name] = f
		}
		for _, rw := range ew.Relations {
			r := Relation(rw)
			ent.Relations = append(ent.Relations, &r)
		}
		snap.Entities = append(snap.Entities, ent)
		snap.index[ent.Name] = ent
	}
	return snap, nil
}

// Checksum returns the sha256 hex digest of the snapshot's canonical
// encoding. Used by the migration ledger for drift detection.
func (s *Snapshot) Checksum() (string, error) {
	data, err := EncodeSnapshot(s)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func fieldToWire(f *Field) fieldWire {
	fw := fieldWire{
		Name:        f.Name,
		Type:        string(f.Type),
		Nullable:    f.Nullable,
		Unique:      f.Unique,
		Identity:    f.Identity,
		Default:     int(f.Default),
		OnUpdateNow: f.OnUpdateNow,
	}
	switch v := f.DefaultValue.(type) {
	case string:
		fw.DefaultStr = &v
	case int64:
		fw.DefaultInt = &v
	case float64:
		fw.DefaultFloat = &v
	case bool:
		fw.DefaultBool = &v
	}
	return fw
}

func fieldFromWire(fw fieldWire) *Field {
	f := &Field{
		Name:        fw.Name,
		Type:        ScalarType(fw.Type),
		Nullable:    fw.Nullable,
		Unique:      fw.Unique,
		Identity:    fw.Identity,
		Default:     DefaultKind(fw.Default),
		OnUpdateNow: fw.OnUpdateNow,
	}
	switch {
	case fw.DefaultStr != nil:
		f.DefaultValue = *fw.DefaultStr
	case fw.DefaultInt != nil:
		f.DefaultValue = *fw.DefaultInt
	case fw.DefaultFloat != nil:
		f.DefaultValue = *fw.DefaultFloat
	case fw.DefaultBool != nil:
		f.DefaultValue = *fw.DefaultBool
	}
	return f
}

package models

import (
	"bytes"
	"crypto/md5"
	"encoding/json"
	"fmt"
)

// FlagPair is one named flag in a CommandSpec. Flags render to argv in the
// order they were declared, which is why they are a slice rather than a
// Go map — map iteration order is not the same contract as the source's
// dict insertion order, and the composite name hash and argv rendering
// both depend on that order being preserved (or, for the hash, on a
// canonical sorted re-encoding — see ParamsHash).
type FlagPair struct {
	Name  string
	Value any
}

// CommandSpec is a serializable subprocess description: a program, its
// ordered named flags, and positional args. It renders deterministically
// to argv and never carries behavior beyond that rendering.
type CommandSpec struct {
	Program string
	Flags   []FlagPair
	Args    []string
	Shell   bool
	Cwd     string
	Env     map[string]string
}

// Clone returns a deep copy so resolvers can rewrite flag/arg values
// without mutating the caller's CommandSpec.
func (c CommandSpec) Clone() CommandSpec {
	clone := c
	clone.Flags = make([]FlagPair, len(c.Flags))
	copy(clone.Flags, c.Flags)
	clone.Args = make([]string, len(c.Args))
	copy(clone.Args, c.Args)
	if c.Env != nil {
		clone.Env = make(map[string]string, len(c.Env))
		for k, v := range c.Env {
			clone.Env[k] = v
		}
	}
	return clone
}

// Argv renders the CommandSpec to an argv slice: [program, flag1, val1,
// ..., arg1, arg2, ...]. Flag values are stringified; a value containing
// embedded spaces is split into multiple argv tokens by the caller when
// appropriate (the worker runtime does this after placeholder
// substitution, not here — Argv is a pure structural rendering).
func (c CommandSpec) Argv() []string {
	argv := make([]string, 0, 1+2*len(c.Flags)+len(c.Args))
	argv = append(argv, c.Program)
	for _, f := range c.Flags {
		argv = append(argv, f.Name, stringifyFlagValue(f.Value))
	}
	argv = append(argv, c.Args...)
	return argv
}

func stringifyFlagValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}

// ParamsHash returns the full MD5 hex digest of the canonical
// (sorted-key, compact) JSON encoding of a flag set. encoding/json
// already sorts map keys when marshaling a map[string]any, which gives
// the same canonicalization the source achieves via
// json.dumps(sort_keys=True, separators=(",", ":")).
func ParamsHash(flags []FlagPair) string {
	m := make(map[string]any, len(flags))
	for _, f := range flags {
		m[f.Name] = f.Value
	}
	// map[string]any may be empty; json.Marshal(nil map) yields "null",
	// but the source always passes at least {} for missing flags.
	if m == nil {
		m = map[string]any{}
	}
	buf, _ := json.Marshal(m)
	sum := md5.Sum(buf)
	return fmt.Sprintf("%x", sum)
}

// CompositeName derives the stable, sortable directory name for a step:
// "{order:03d}_{service}_{program}_{param_hash8}".
func CompositeName(order int, service, program string, flags []FlagPair) string {
	if service == "" {
		service = "unknown"
	}
	if program == "" {
		program = "unknown"
	}
	hash := ParamsHash(flags)
	if len(hash) > 8 {
		hash = hash[:8]
	}
	return fmt.Sprintf("%03d_%s_%s_%s", order, service, program, hash)
}

// MarshalJSON emits Flags as a JSON object in declaration order. Standard
// library map marshaling would re-sort keys alphabetically, which is
// correct for ParamsHash but would silently reorder argv rendering for
// any downstream reader that treats "flags" positionally — so this is
// hand-rolled rather than delegated to encoding/json's map support.
func (c CommandSpec) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	fmt.Fprintf(&buf, "%q:%q,", "program", c.Program)
	buf.WriteString(`"flags":{`)
	for i, f := range c.Flags {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(f.Name)
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteString("},")
	argsJSON, _ := json.Marshal(c.Args)
	fmt.Fprintf(&buf, "%q:%s,", "args", argsJSON)
	fmt.Fprintf(&buf, "%q:%v,", "shell", c.Shell)
	fmt.Fprintf(&buf, "%q:%q,", "cwd", c.Cwd)
	envJSON, _ := json.Marshal(c.Env)
	fmt.Fprintf(&buf, "%q:%s", "env", envJSON)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes Flags as an ordered slice of pairs by walking the
// raw JSON object's tokens in source order via json.Decoder, rather than
// through a map (which would lose the order the caller submitted flags
// in).
func (c *CommandSpec) UnmarshalJSON(data []byte) error {
	var raw struct {
		Program string            `json:"program"`
		Flags   json.RawMessage   `json:"flags"`
		Args    []string          `json:"args"`
		Shell   bool              `json:"shell"`
		Cwd     string            `json:"cwd"`
		Env     map[string]string `json:"env"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode command_spec: %w", err)
	}
	c.Program = raw.Program
	c.Args = raw.Args
	c.Shell = raw.Shell
	c.Cwd = raw.Cwd
	c.Env = raw.Env
	c.Flags = nil

	if len(raw.Flags) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw.Flags))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decode command_spec.flags: %w", err)
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return fmt.Errorf("command_spec.flags must be a JSON object")
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decode command_spec.flags key: %w", err)
		}
		key, _ := keyTok.(string)
		var val any
		if err := dec.Decode(&val); err != nil {
			return fmt.Errorf("decode command_spec.flags[%s]: %w", key, err)
		}
		c.Flags = append(c.Flags, FlagPair{Name: key, Value: val})
	}
	return nil
}

package domain

import (
	"encoding/json"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// migrateRaw parses a manifest document of unknown schema version and
// converges it to CurrentManifestVersion, per §4.A.
//
// v0 documents have no "version"/"skills" keys at all: each top-level key
// is a skill name mapping directly to an ad-hoc object of fields. Because
// that shape cannot be unmarshalled into a fixed Go struct without a
// dynamic pre-pass, the v0→v1 reshape is done with gjson/sjson (grounded
// on hanmahong5-arch-acest-switch's use of the same pair for exactly this
// kind of loosely-typed, per-name-keyed document) before handing off to
// the ordinary json.Unmarshal + struct-level v1→v2 step in migrate().
func migrateRaw(raw []byte) (*Manifest, error) {
	if !gjson.ValidBytes(raw) {
		return migrate(&Manifest{}), nil
	}

	parsed := gjson.ParseBytes(raw)
	if !parsed.Get("version").Exists() && !parsed.Get("skills").Exists() {
		reshaped, err := reshapeV0(raw)
		if err != nil {
			return migrate(&Manifest{}), nil
		}
		raw = reshaped
	}

	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return migrate(&Manifest{}), nil
	}
	return migrate(&m), nil
}

// reshapeV0 rebuilds a v0 ad-hoc per-name document into the v1 {version,
// blacklist, skills} shape, preserving origin/beta/installed/updated and
// coercing a boolean "installed" field (true or false) to the numeric 0 the
// newer schema expects. Grounded on §4.A's v0→v1 migration rule.
func reshapeV0(raw []byte) ([]byte, error) {
	out := []byte(`{"version":1,"blacklist":[],"skills":[]}`)

	var reshapeErr error
	idx := 0
	gjson.ParseBytes(raw).ForEach(func(key, value gjson.Result) bool {
		name := key.String()

		entry := map[string]any{
			"name":         name,
			"origin":       value.Get("origin").String(),
			"beta":         value.Get("beta").Bool(),
			"status":       StatusActive,
			"installation": InstallationInstalled,
			"skill_gid":    "",
		}

		installed := value.Get("installed")
		switch {
		case installed.Type == gjson.True:
			entry["installed"] = 0
		case installed.Type == gjson.False:
			entry["installed"] = 0
		default:
			entry["installed"] = installed.Int()
		}
		entry["updated"] = value.Get("updated").Int()

		path := "skills." + itoa(idx)
		var err error
		out, err = sjson.SetBytes(out, path, entry)
		if err != nil {
			reshapeErr = err
			return false
		}
		idx++
		return true
	})

	if reshapeErr != nil {
		return nil, reshapeErr
	}
	return out, nil
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	digits := []byte{}
	for i > 0 {
		digits = append([]byte{byte('0' + i%10)}, digits...)
		i /= 10
	}
	return string(digits)
}

// migrate converges a parsed document (already at v1 or v2 struct shape) to
// CurrentManifestVersion, per §4.A's v1→v2 rule: add skill_gid (already
// present as a zero-value "" for every entry unmarshalled above, or carried
// over from a v2 document) and bump the version. Sets the transient
// upgraded marker when it bumps the version, so the Manager forces a write.
func migrate(m *Manifest) *Manifest {
	if m.Blacklist == nil {
		m.Blacklist = []string{}
	}
	if m.Skills == nil {
		m.Skills = []*ManifestEntry{}
	}

	if m.Version < CurrentManifestVersion {
		m.Version = CurrentManifestVersion
		m.upgraded = true
	}

	return m
}

// Upgraded reports whether Load() applied a schema migration, per §4.A's
// transient marker that forces the Manager to write even on an unchanged
// hash.
func (m *Manifest) Upgraded() bool {
	return m.upgraded
}

package frame

import "fmt"

// Step upgrades a payload written at a given version to the payload
// for the next version. Steps are composed by Migrate to walk a
// payload from whatever version it was stored at up to CurrentVersion.
type Step func(payload []byte) ([]byte, error)

// Chain maps "payload was written at this version" to the step that
// upgrades it to the next version. A version with no registered step
// is assumed to need no transformation (the wire shape didn't change
// that release) and the payload passes through unchanged.
type Chain map[uint16]Step

// Migrate walks payload forward from "from" to CurrentVersion, one
// step at a time. It never rewrites anything in the store: migration
// is read-time only, as required by the backward-compatibility
// guarantee that a version-1 payload must remain readable forever.
func (c Chain) Migrate(payload []byte, from uint16) ([]byte, error) {
	if from > CurrentVersion {
		return nil, ErrTooNew{Version: from}
	}
	for v := from; v < CurrentVersion; v++ {
		step, ok := c[v]
		if !ok {
			continue
		}
		next, err := step(payload)
		if err != nil {
			return nil, fmt.Errorf("frame: migrating from version %d: %w", v, err)
		}
		payload = next
	}
	return payload, nil
}

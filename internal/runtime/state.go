// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

package runtime

import (
	"github.com/fxamacker/cbor/v2"

	"github.com/crossweb-dev/crossweb/internal/plugin"
	cwerr "github.com/crossweb-dev/crossweb/pkg/errors"
	sdk "github.com/crossweb-dev/crossweb/pkg/plugin"
)

const stateVersion = 1

// reloadState is the CBOR body of the blob handed across a reload.
type reloadState struct {
	Version    int                   `cbor:"v"`
	Instance   string                `cbor:"instance"`
	Generation uint64                `cbor:"gen"`
	Pending    []plugin.PendingEntry `cbor:"pending,omitempty"`
	Values     map[string][]byte     `cbor:"values,omitempty"`
}

// PreReload captures pending requests and carried values. It does not
// modify the runtime, so a failed swap can hand the blob straight back.
func (r *Runtime) PreReload() ([]byte, error) {
	r.mu.Lock()
	st := reloadState{
		Version:    stateVersion,
		Instance:   r.instance,
		Generation: r.generation,
		Pending:    r.pending.Snapshot(),
		Values:     make(map[string][]byte, len(r.values)),
	}
	for k, v := range r.values {
		st.Values[k] = v
	}
	r.mu.Unlock()

	data, err := cbor.Marshal(st)
	if err != nil {
		return nil, cwerr.Wrap(err, cwerr.CodeReloadStateInvalid, "encoding reload state")
	}
	r.logger.Debug("captured reload state", "pending", len(st.Pending), "values", len(st.Values), "bytes", len(data))
	return data, nil
}

// PostReload restores state captured by PreReload. An empty blob is a
// first load and is ignored. A blob this runtime produced itself is a
// rolled back swap: nothing is re-announced.
func (r *Runtime) PostReload(state []byte) error {
	if len(state) == 0 {
		return nil
	}

	var st reloadState
	if err := cbor.Unmarshal(state, &st); err != nil {
		return cwerr.Wrap(err, cwerr.CodeReloadStateInvalid, "decoding reload state")
	}
	if st.Version != stateVersion {
		return cwerr.New(cwerr.CodeReloadStateInvalid, "unsupported reload state version",
			cwerr.Field("version", st.Version))
	}

	if st.Instance == r.instance {
		r.logger.Debug("reload rolled back, keeping state")
		return nil
	}

	r.mu.Lock()
	for k, v := range st.Values {
		if _, ok := r.values[k]; !ok {
			r.values[k] = v
		}
	}
	if st.Generation >= r.generation {
		r.generation = st.Generation + 1
	}
	pending := r.pending
	r.mu.Unlock()

	restored := pending.Restore(st.Pending, func(id string) sdk.Responder {
		return func(response string) { r.respond(id, response) }
	})
	r.logger.Info("restored reload state", "pending", restored, "values", len(st.Values))

	payload := r.reloadedPayload()
	r.Notify(EventReloaded, payload)
	r.Emit(EventReloaded, payload)
	return nil
}

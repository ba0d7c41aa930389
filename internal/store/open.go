package store

import "agora/internal/protocol"

// Open dispatches on the configured medium name. The returned close func is
// a no-op for media without connection state.
func Open(medium, path string) (Store, func() error, error) {
	switch medium {
	case "", "file":
		st, err := NewFileStore(path)
		if err != nil {
			return nil, nil, err
		}
		return st, func() error { return nil }, nil
	case "sqlite":
		st, err := OpenSQLite(path)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	default:
		return nil, nil, protocol.Validationf("unknown storage medium %q", medium)
	}
}

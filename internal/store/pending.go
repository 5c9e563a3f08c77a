package store

import "github.com/tos-network/ralite/internal/bigint"

// PendingKey identifies an unclaimed send awaiting a matching
// receive/open (spec §3: pending[{destination, send-hash}]).
type PendingKey struct {
	Destination bigint.U256
	SendHash    bigint.U256
}

// PendingValue is the source account and amount of the unclaimed send.
type PendingValue struct {
	Source bigint.U256
	Amount bigint.U128
}

func pendingKey(k PendingKey) []byte {
	return key(tblPending, k.Destination[:], k.SendHash[:])
}

func (v PendingValue) encode() []byte {
	buf := make([]byte, 0, 48)
	buf = append(buf, v.Source[:]...)
	buf = append(buf, v.Amount[:]...)
	return buf
}

func decodePendingValue(b []byte) (PendingValue, bool) {
	if len(b) != 48 {
		return PendingValue{}, false
	}
	var v PendingValue
	copy(v.Source[:], b[:32])
	copy(v.Amount[:], b[32:])
	return v, true
}

func PendingGet(r Reader, k PendingKey) (PendingValue, bool, error) {
	v, ok, err := r.Get(pendingKey(k))
	if err != nil || !ok {
		return PendingValue{}, false, err
	}
	pv, ok := decodePendingValue(v)
	if !ok {
		return PendingValue{}, false, ErrCorrupt
	}
	return pv, true, nil
}

func PendingPut(w Writer, k PendingKey, v PendingValue) error {
	return w.Put(pendingKey(k), v.encode())
}

func PendingDel(w Writer, k PendingKey) error {
	return w.Delete(pendingKey(k))
}

func PendingExists(r Reader, k PendingKey) (bool, error) {
	return r.Has(pendingKey(k))
}

// PendingIterateForDestination walks every pending entry addressed to
// destination.
func PendingIterateForDestination(r Reader, destination bigint.U256, fn func(sendHash bigint.U256, v PendingValue) error) error {
	prefix := key(tblPending, destination[:])
	it := r.Iterator(prefix)
	defer it.Release()
	for it.Next() {
		var send bigint.U256
		copy(send[:], it.Key()[1+32:])
		pv, ok := decodePendingValue(it.Value())
		if !ok {
			return ErrCorrupt
		}
		if err := fn(send, pv); err != nil {
			return err
		}
	}
	return it.Error()
}

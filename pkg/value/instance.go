package value

// Instance is an instantiated class: a class reference plus a flat vector
// of member values (fields, ordered superclass-first then declaration
// order, matching the teacher's vm.Instance / countAllFields convention).
type Instance struct {
	Class   *Class
	Members []Value
}

// BytesBuffer returns the raw byte buffer of a `bytes`-class instance,
// read from member slot 0 (the buffer) and slot 1 (its length), matching
// the layout spec.md §4.2's const_bytes_instance row describes.
//
// ok is false if ins is not shaped like a bytes instance.
func (ins *Instance) BytesBuffer() (buf []byte, ok bool) {
	if len(ins.Members) < 2 {
		return nil, false
	}
	raw, ok := ins.Members[0].([]byte)
	if !ok {
		return nil, false
	}
	n, ok := ins.Members[1].(int64)
	if !ok || int(n) > len(raw) {
		return nil, false
	}
	return raw[:n], true
}

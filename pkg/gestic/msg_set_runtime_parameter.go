package gestic

import "fmt"

const setRuntimeParameterSize = 16

type RuntimeParameter struct {
	ID   ParameterID
	Arg0 uint32
	Arg1 uint32
}

// SetRuntimeParameterMessage packs a parameter write. The device sends the
// same layout back when a parameter is requested.
func SetRuntimeParameterMessage(p RuntimeParameter) Message {
	m := newMessage(MsgSetRuntimeParameter, setRuntimeParameterSize)
	m.putU16(4, uint16(p.ID))
	m.putU32(8, p.Arg0)
	m.putU32(12, p.Arg1)
	return m
}

func parseRuntimeParameter(m Message) (RuntimeParameter, error) {
	if len(m) != setRuntimeParameterSize {
		return RuntimeParameter{}, fmt.Errorf("%w: Set_Runtime_Parameter is %d bytes, want %d", ErrProtocol, len(m), setRuntimeParameterSize)
	}
	id, _ := m.U16(4)
	arg0, _ := m.U32(8)
	arg1, _ := m.U32(12)
	return RuntimeParameter{ID: ParameterID(id), Arg0: arg0, Arg1: arg1}, nil
}

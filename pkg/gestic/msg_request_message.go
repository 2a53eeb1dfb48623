package gestic

const requestMessageSize = 12

// RequestMessage asks the device to send the message identified by id.
// param is message specific; for Set_Runtime_Parameter it selects the parameter.
func RequestMessage(id MessageID, param uint32) Message {
	m := newMessage(MsgRequestMessage, requestMessageSize)
	m[4] = byte(id)
	m.putU32(8, param)
	return m
}

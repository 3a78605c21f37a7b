package core

import "github.com/averel/salon/internal/protocol"

// SystemSender labels server-generated room texts in MSG_BROADCAST frames.
const SystemSender = "Server"

// Room membership actions carried in ROOM_UPDATE frames.
const (
	ActionJoin  = "join"
	ActionLeave = "leave"
)

func loginOKFrame() protocol.Frame {
	return protocol.Frame{Type: protocol.TypeLoginOK}
}

func loginErrFrame(reason string) protocol.Frame {
	return protocol.Frame{Type: protocol.TypeLoginErr, Payload: protocol.String(reason)}
}

func userConnectedFrame(pseudonym string) protocol.Frame {
	return protocol.Frame{Type: protocol.TypeUserConnected, Payload: protocol.String(pseudonym)}
}

func joinOKFrame() protocol.Frame {
	return protocol.Frame{Type: protocol.TypeJoinOK}
}

func roomUpdateFrame(room, user, action string) protocol.Frame {
	return protocol.Frame{Type: protocol.TypeRoomUpdate, Payload: protocol.Strings(room, user, action)}
}

func msgBroadcastFrame(sender, text string) protocol.Frame {
	return protocol.Frame{Type: protocol.TypeMsgBroadcast, Payload: protocol.Strings(sender, text)}
}

func systemTextFrame(text string) protocol.Frame {
	return msgBroadcastFrame(SystemSender, text)
}

func errorFrame(code byte, msg string) protocol.Frame {
	return protocol.Frame{Type: protocol.TypeError, Payload: protocol.ErrorPayload(code, msg)}
}

func fileRequestFrame(offerer, filename string, size uint32) protocol.Frame {
	p := protocol.Strings(offerer, filename)
	p = protocol.AppendUint32(p, size)
	return protocol.Frame{Type: protocol.TypeFileRequest, Payload: p}
}

func fileStartFrame() protocol.Frame {
	return protocol.Frame{Type: protocol.TypeFileStart}
}

func fileCancelFrame(reason string) protocol.Frame {
	return protocol.Frame{Type: protocol.TypeFileCancel, Payload: protocol.String(reason)}
}

func pongFrame() protocol.Frame {
	return protocol.Frame{Type: protocol.TypePong}
}

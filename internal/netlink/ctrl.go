package netlink

// FamilyEvent is a decoded CTRL_CMD_NEWFAMILY/CTRL_CMD_DELFAMILY
// notification from the nlctrl "notify" multicast group (§6).
type FamilyEvent struct {
	Appeared   bool // true for NEWFAMILY, false for DELFAMILY
	FamilyName string
}

// ParseFamilyEvent interprets one reassembled RawMessage as a family
// registration notification. ok is false for any command other than
// NEWFAMILY/DELFAMILY, or a message missing CTRL_ATTR_FAMILY_NAME.
func ParseFamilyEvent(msg RawMessage) (FamilyEvent, bool) {
	var appeared bool
	switch msg.Genl.Cmd {
	case CtrlCmdNewFamily:
		appeared = true
	case CtrlCmdDelFamily:
		appeared = false
	default:
		return FamilyEvent{}, false
	}

	for _, attr := range ParseAttrs(msg.Body) {
		if attr.Type == CtrlAttrFamilyName {
			return FamilyEvent{Appeared: appeared, FamilyName: nulTerminatedString(attr.Value)}, true
		}
	}
	return FamilyEvent{}, false
}

// FamilyExists polls the kernel (via a fresh CTRL_CMD_GETFAMILY round
// trip) for whether the named family is currently registered. Used by the
// liveness controller's backup poll (§2 item 3, §4 design notes).
func FamilyExists(family string) bool {
	ctrl, err := Open()
	if err != nil {
		return false
	}
	defer ctrl.Close()

	if err := sendGetFamily(ctrl, family); err != nil {
		return false
	}

	buf := make([]byte, 0x1FFFF)
	for attempt := 0; attempt < resolveGroupAttempts; attempt++ {
		n, err := ctrl.Recv(buf)
		if err != nil {
			if err == ErrWouldBlock {
				continue
			}
			return false
		}
		scanner := NewScanner()
		for _, msg := range scanner.Feed(buf[:n]) {
			for _, attr := range ParseAttrs(msg.Body) {
				if attr.Type == CtrlAttrFamilyID {
					return true
				}
			}
		}
	}
	return false
}

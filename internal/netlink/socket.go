package netlink

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// ErrWouldBlock is returned by Recv when no data is currently available on
// a non-blocking socket; callers treat this as the normal idle case
// (§4.2 "WouldBlock is normal; continue").
var ErrWouldBlock = errors.New("netlink: would block")

// ErrNoBuffers signals ENOBUFS: the kernel-side receive buffer overflowed.
// Callers log once and keep the socket open (§4.2, §7).
var ErrNoBuffers = errors.New("netlink: no buffer space (ENOBUFS)")

const (
	solNetlink             = 270 // SOL_NETLINK
	netlinkAddMembership   = 1   // NETLINK_ADD_MEMBERSHIP
	resolveGroupPollPeriod = 10 * time.Millisecond
	resolveGroupAttempts   = 50 // ~500ms total budget for a GETFAMILY round-trip
)

// Socket is a thin wrapper around a raw AF_NETLINK/NETLINK_GENERIC socket.
// One instance owns exactly one multicast membership and is never shared
// between actors (§5 "Shared resources").
type Socket struct {
	fd int
}

// Open creates an unbound generic-netlink socket connected to the kernel
// (pid 0).
func Open() (*Socket, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_RAW, unix.NETLINK_GENERIC)
	if err != nil {
		return nil, fmt.Errorf("open netlink socket: %w", err)
	}
	addr := &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Pid: 0, Groups: 0}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind netlink socket: %w", err)
	}
	return &Socket{fd: fd}, nil
}

// JoinGroup subscribes the socket to the given multicast group id.
func (s *Socket) JoinGroup(groupID uint32) error {
	if err := unix.SetsockoptInt(s.fd, solNetlink, netlinkAddMembership, int(groupID)); err != nil {
		return fmt.Errorf("join multicast group %d: %w", groupID, err)
	}
	return nil
}

// Send transmits buf to the kernel (pid 0).
func (s *Socket) Send(buf []byte) error {
	addr := &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Pid: 0}
	return unix.Sendto(s.fd, buf, 0, addr)
}

// Recv performs one non-blocking receive. It returns ErrWouldBlock when no
// data is ready and ErrNoBuffers on ENOBUFS; any other error is
// socket-fatal per §7.
func (s *Socket) Recv(buf []byte) (int, error) {
	n, _, err := unix.Recvfrom(s.fd, buf, unix.MSG_DONTWAIT)
	if err != nil {
		switch {
		case errors.Is(err, unix.EAGAIN):
			return 0, ErrWouldBlock
		case errors.Is(err, unix.ENOBUFS):
			return 0, ErrNoBuffers
		default:
			return 0, err
		}
	}
	return n, nil
}

// Close releases the underlying file descriptor.
func (s *Socket) Close() error {
	return unix.Close(s.fd)
}

// ResolvedGroup carries the result of resolving a (family, group) pair
// against the kernel's generic-netlink controller family.
type ResolvedGroup struct {
	FamilyID uint16
	GroupID  uint32
}

// ResolveGroup asks the kernel (via CTRL_CMD_GETFAMILY on the always-present
// nlctrl family) for the numeric family id and multicast group id of
// (family, group). It uses its own short-lived control socket distinct
// from the data socket being configured (§4.2 "Connect protocol" step a).
func ResolveGroup(family, group string) (ResolvedGroup, error) {
	ctrl, err := Open()
	if err != nil {
		return ResolvedGroup{}, err
	}
	defer ctrl.Close()

	if err := sendGetFamily(ctrl, family); err != nil {
		return ResolvedGroup{}, err
	}

	buf := make([]byte, 0x1FFFF)
	for attempt := 0; attempt < resolveGroupAttempts; attempt++ {
		n, err := ctrl.Recv(buf)
		if err != nil {
			if errors.Is(err, ErrWouldBlock) {
				time.Sleep(resolveGroupPollPeriod)
				continue
			}
			return ResolvedGroup{}, err
		}
		if resolved, ok, perr := parseGetFamilyReply(buf[:n], group); perr != nil {
			return ResolvedGroup{}, perr
		} else if ok {
			return resolved, nil
		}
	}
	return ResolvedGroup{}, fmt.Errorf("resolve family %q group %q: timed out waiting for kernel reply", family, group)
}

func sendGetFamily(s *Socket, family string) error {
	nameAttr := append([]byte(family), 0)
	body := PutAttr(nil, CtrlAttrFamilyName, nameAttr)

	total := CombinedLen + len(body)
	msg := make([]byte, total)
	PutHeader(msg, Header{Len: uint32(total), Type: GenlIDCtrl, Flags: NLMFRequest})
	PutGenlHeader(msg[HeaderLen:], GenlHeader{Cmd: CtrlCmdGetFamily, Version: 1})
	copy(msg[CombinedLen:], body)

	return s.Send(msg)
}

// parseGetFamilyReply scans one recv's worth of bytes (which may hold
// several concatenated netlink messages) for a GETFAMILY reply carrying
// the requested multicast group name, per §6's CTRL_ATTR_MCAST_GROUPS
// nested-attribute shape.
func parseGetFamilyReply(buf []byte, wantGroup string) (ResolvedGroup, bool, error) {
	off := 0
	for off+HeaderLen <= len(buf) {
		hdr := DecodeHeader(buf[off:])
		declared := int(hdr.Len)
		if declared < HeaderLen || off+declared > len(buf) {
			break
		}
		msg := buf[off : off+declared]
		off += declared

		if len(msg) < CombinedLen {
			continue
		}
		attrs := ParseAttrs(msg[CombinedLen:])

		var familyID uint16
		var haveFamilyID bool
		var groupID uint32
		var haveGroupID bool
		for _, a := range attrs {
			switch a.Type {
			case CtrlAttrFamilyID:
				if len(a.Value) >= 2 {
					familyID = uint16(a.Value[0]) | uint16(a.Value[1])<<8
					haveFamilyID = true
				}
			case CtrlAttrMcastGroups:
				if id, ok := findMcastGroupID(a.Value, wantGroup); ok {
					groupID = id
					haveGroupID = true
				}
			}
		}
		if haveFamilyID && haveGroupID {
			return ResolvedGroup{FamilyID: familyID, GroupID: groupID}, true, nil
		}
	}
	return ResolvedGroup{}, false, nil
}

// findMcastGroupID walks the nested CTRL_ATTR_MCAST_GROUPS array (each
// element itself a small attribute list containing a name and an id) for
// one named wantGroup.
func findMcastGroupID(nested []byte, wantGroup string) (uint32, bool) {
	for _, group := range ParseAttrs(nested) {
		var name string
		var id uint32
		var haveID bool
		for _, a := range ParseAttrs(group.Value) {
			switch a.Type {
			case CtrlAttrMcastGrpName:
				name = nulTerminatedString(a.Value)
			case CtrlAttrMcastGrpID:
				if len(a.Value) >= 4 {
					id = uint32(a.Value[0]) | uint32(a.Value[1])<<8 | uint32(a.Value[2])<<16 | uint32(a.Value[3])<<24
					haveID = true
				}
			}
		}
		if haveID && name == wantGroup {
			return id, true
		}
	}
	return 0, false
}

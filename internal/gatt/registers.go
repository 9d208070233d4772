package gatt

import (
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Register identifies one addressable register on the peripheral. Values are
// normalized characteristic UUIDs (lowercase, no dashes, SIG-base UUIDs
// reduced to their 16-bit short form).
type Register string

// Service UUIDs. The servo service UUID is vendor-specific and does not
// reduce to a short form.
const (
	ServoServiceUUID  = "2a0018002803280128001d9ff2d5c442"
	StatusServiceUUID = "e001"
)

// Servo bank registers.
const (
	RegRegisterWrite1P Register = "9141"
	RegRegisterWrite2P Register = "9142"
	RegServoHorizontal Register = "9145"
	RegServoVertical   Register = "9146"
)

// Status bank registers.
const (
	RegBattery        Register = "e101"
	RegServoError     Register = "e102"
	RegServoErrorID   Register = "e103"
	RegIndicatorColor Register = "e104"
	RegBatteryStatus  Register = "e105"
	RegButton         Register = "e10a"
)

// Bank identifies the logical register bank a register belongs to.
type Bank int

const (
	ServoBank Bank = iota
	StatusBank
)

func (b Bank) String() string {
	switch b {
	case ServoBank:
		return "servo"
	case StatusBank:
		return "status"
	default:
		return "unknown"
	}
}

// RegisterInfo describes a register for display and bank grouping.
type RegisterInfo struct {
	Name string
	Bank Bank
}

// registerTable lists every known register in bank order. Iteration order is
// significant: the servo bank precedes the status bank.
var registerTable = func() *orderedmap.OrderedMap[Register, RegisterInfo] {
	m := orderedmap.New[Register, RegisterInfo]()
	m.Set(RegRegisterWrite1P, RegisterInfo{Name: "register-write-1p", Bank: ServoBank})
	m.Set(RegRegisterWrite2P, RegisterInfo{Name: "register-write-2p", Bank: ServoBank})
	m.Set(RegServoHorizontal, RegisterInfo{Name: "servo-horizontal", Bank: ServoBank})
	m.Set(RegServoVertical, RegisterInfo{Name: "servo-vertical", Bank: ServoBank})
	m.Set(RegBattery, RegisterInfo{Name: "battery", Bank: StatusBank})
	m.Set(RegBatteryStatus, RegisterInfo{Name: "battery-status", Bank: StatusBank})
	m.Set(RegServoError, RegisterInfo{Name: "servo-error", Bank: StatusBank})
	m.Set(RegServoErrorID, RegisterInfo{Name: "servo-error-id", Bank: StatusBank})
	m.Set(RegIndicatorColor, RegisterInfo{Name: "indicator-color", Bank: StatusBank})
	m.Set(RegButton, RegisterInfo{Name: "button", Bank: StatusBank})
	return m
}()

// Lookup returns the descriptive info for a known register.
func Lookup(reg Register) (RegisterInfo, bool) {
	return registerTable.Get(reg)
}

// KnownRegisters returns every register in bank order.
func KnownRegisters() []Register {
	regs := make([]Register, 0, registerTable.Len())
	for pair := registerTable.Oldest(); pair != nil; pair = pair.Next() {
		regs = append(regs, pair.Key)
	}
	return regs
}

// NormalizeUUID converts a UUID string to the internal lookup format:
// lowercase, no dashes, "0x" prefix stripped, and Bluetooth SIG base UUIDs
// (0000xxxx-0000-1000-8000-00805f9b34fb) reduced to their 16-bit short form.
func NormalizeUUID(uuid string) string {
	s := strings.ToLower(uuid)
	s = strings.TrimPrefix(s, "0x")
	s = strings.ReplaceAll(s, "-", "")
	if len(s) == 32 && strings.HasPrefix(s, "0000") && strings.HasSuffix(s, "00001000800000805f9b34fb") {
		return s[4:8]
	}
	return s
}

// RegisterSet records which known registers were resolved on a connected
// peripheral, preserved in bank order.
type RegisterSet struct {
	m *orderedmap.OrderedMap[Register, RegisterInfo]
}

// NewRegisterSet builds a RegisterSet from the resolved characteristic UUIDs.
// Unknown UUIDs are ignored; the result iterates in register-table order.
func NewRegisterSet(resolved []string) *RegisterSet {
	found := make(map[Register]struct{}, len(resolved))
	for _, uuid := range resolved {
		found[Register(NormalizeUUID(uuid))] = struct{}{}
	}

	m := orderedmap.New[Register, RegisterInfo]()
	for pair := registerTable.Oldest(); pair != nil; pair = pair.Next() {
		if _, ok := found[pair.Key]; ok {
			m.Set(pair.Key, pair.Value)
		}
	}
	return &RegisterSet{m: m}
}

// Has reports whether the register was resolved.
func (s *RegisterSet) Has(reg Register) bool {
	if s == nil {
		return false
	}
	_, ok := s.m.Get(reg)
	return ok
}

// Complete reports whether every known register was resolved, i.e. both the
// servo bank and the status bank are fully present.
func (s *RegisterSet) Complete() bool {
	return s != nil && s.m.Len() == registerTable.Len()
}

// Registers returns the resolved registers in bank order.
func (s *RegisterSet) Registers() []Register {
	if s == nil {
		return nil
	}
	regs := make([]Register, 0, s.m.Len())
	for pair := s.m.Oldest(); pair != nil; pair = pair.Next() {
		regs = append(regs, pair.Key)
	}
	return regs
}

// Len returns the number of resolved registers.
func (s *RegisterSet) Len() int {
	if s == nil {
		return 0
	}
	return s.m.Len()
}

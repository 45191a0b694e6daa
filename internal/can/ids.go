package can

// TCAN functional group base identifiers. Controller command IDs are
// addressed by adding the device-id offset of the target unit.
const (
	IDOTACommand  uint32 = 0x400
	IDOTAResponse uint32 = 0x410
	IDOTAData     uint32 = 0x420

	IDControllerSys     uint32 = 0x500 // mode heartbeat
	IDControllerPWM     uint32 = 0x510
	IDControllerSPST    uint32 = 0x520
	IDControllerSPDT    uint32 = 0x530
	IDControllerHC      uint32 = 0x540
	IDControllerCustom1 uint32 = 0x550 // custom commands (autocal)
	IDControllerCANAxis uint32 = 0x560 // axis command
	IDControllerUnused7 uint32 = 0x570
	IDControllerUnused8 uint32 = 0x580
	IDControllerUnused9 uint32 = 0x590
	IDControllerUnusedA uint32 = 0x5A0
	IDControllerUnusedB uint32 = 0x5B0
	IDControllerUnusedC uint32 = 0x5C0
	IDControllerUnusedD uint32 = 0x5D0
	IDControllerUnusedE uint32 = 0x5E0
	IDControllerRDAC    uint32 = 0x5F0

	IDPDUControl uint32 = 0x60F

	IDTCUHeartbeat       uint32 = 0x700
	IDTCUStatPWM         uint32 = 0x710
	IDTCUStatSPST        uint32 = 0x720
	IDTCUStatSPDT        uint32 = 0x730
	IDTCUStatHC          uint32 = 0x740
	IDTCUStatCustom      uint32 = 0x750
	IDTCUStatCANAxis     uint32 = 0x760
	IDTCUStatUnused7     uint32 = 0x770
	IDTCUStatUUID        uint32 = 0x780
	IDTCUStatAINC        uint32 = 0x790
	IDTCUStatGitSHA      uint32 = 0x7A0
	IDTCUStatAINA        uint32 = 0x7B0
	IDTCUStatAINB        uint32 = 0x7C0
	IDMCANStatus         uint32 = 0x7D0
	IDTCUStatAIND        uint32 = 0x7E0
	IDReplayControllerHB uint32 = 0x7F0
)

// Address adds the device-id offset to a functional group base.
func Address(base, deviceID uint32) uint32 { return base + deviceID }

// BeaconIDs is the ordered list of extended identifiers announced on every
// beacon cycle. Each beacon carries its own identifier as payload.
var BeaconIDs = []uint32{
	0x00000003,

	0x08000001,
	0x08000002,
	0x08000003,
	0x08000004,
	0x08000005,

	0x08000066,
	0x08000067,
	0x08000068,
	0x08000069,
	0x08000070,
	0x08000071,

	0x05800001,
}

// DefaultReceiveFilter limits what the process receives while a bus handle is open.
var DefaultReceiveFilter = Filter{ID: 0x11, Mask: 0x21, Extended: false}

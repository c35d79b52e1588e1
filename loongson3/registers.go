package loongson3

// SPI controller base physical addresses. The two CPU families place the
// same register block at different addresses.
const (
	Loongson64CBase uintptr = 0x1fe00220
	Loongson64GBase uintptr = 0x1fe001f0

	// RegWindowSize is the length of the register block to map.
	RegWindowSize = 0x10
)

// Register offsets from the window base. All registers are one byte wide.
const (
	regSPCR   = 0x0 // control
	regSPSR   = 0x1 // status (read only)
	regFIFO   = 0x2 // TX/RX FIFO data
	regSFCP   = 0x4 // read-engine control
	regSoftCS = 0x5 // software chip-select control
)

// regSPCR bits
const (
	spcrMSTR = 1 << 4 // bus master mode
	spcrSPE  = 1 << 6 // SPI enable
)

// regSPSR bits
const (
	spsrRFEmpty = 1 << 0 // read FIFO empty
	spsrRFFull  = 1 << 1 // read FIFO full
	spsrWFEmpty = 1 << 2 // write FIFO empty
	spsrWFFull  = 1 << 3 // write FIFO full
	spsrWCol    = 1 << 6 // write collision
)

// regSFCP bits
const (
	sfcpMemEn = 1 << 0 // read engine enable (memory-mapped flash reads)
)

// regSoftCS values. The firmware flash is always wired to CS0: bit 0
// enables software control of the line, bit 4 sets its level.
const (
	softCSAssert   = (0 << 4) | (1 << 0) // CS0 low, selected
	softCSDeassert = (1 << 4) | (1 << 0) // CS0 high, idle
)

// cpuFamilies maps the -cpu programmer parameter onto a controller base
// address. Different kernels report different model strings in cpuinfo, so
// the user names the model explicitly instead of us probing for it.
var cpuFamilies = map[string]struct {
	family string
	base   uintptr
}{
	"3b1500": {"Loongson64C", Loongson64CBase},
	"3a2000": {"Loongson64C", Loongson64CBase},
	"3b2000": {"Loongson64C", Loongson64CBase},
	"3a3000": {"Loongson64C", Loongson64CBase},
	"3b3000": {"Loongson64C", Loongson64CBase},

	"3a4000": {"Loongson64G", Loongson64GBase},
	"3b4000": {"Loongson64G", Loongson64GBase},
}

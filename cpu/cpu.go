// Package cpu implements a cycle-accurate NMOS 6502 core, extracted
// from the CPU engine of a Commodore 1541 floppy-drive emulator. It
// reproduces the 6502's state machine one bus access per Step call,
// including dummy/spurious reads, the full undocumented opcode set,
// and the interrupt/branch timing idiosyncrasies real silicon exhibits.
//
// The core talks to its host exclusively through two caller-supplied
// bus functions and a handful of discrete input signals (RESET, IRQ,
// NMI, SO, and optionally RDY). It has no notion of peripherals, a
// memory map, or a display — those are the host's problem.
package cpu

import "fmt"

// Status register bits.
const (
	FlagC = uint8(0x01) // Carry
	FlagZ = uint8(0x02) // Zero
	FlagI = uint8(0x04) // Interrupt disable
	FlagD = uint8(0x08) // Decimal mode
	FlagB = uint8(0x10) // Break (only meaningful on the stack copy)
	FlagU = uint8(0x20) // Unused, always reads as 1
	FlagV = uint8(0x40) // Overflow
	FlagN = uint8(0x80) // Negative
)

// Interrupt and reset vectors.
const (
	NMIVector   = uint16(0xFFFA)
	ResetVector = uint16(0xFFFC)
	IRQVector   = uint16(0xFFFE)
)

// ReadFunc is the host-supplied bus read callback. It must return the
// byte present on the data bus for addr, including open-bus behavior
// for unmapped regions (spec §4.1) — every call is a genuine bus
// transaction and memory-mapped side effects must apply even for
// dummy reads the CPU discards.
type ReadFunc func(addr uint16) uint8

// WriteFunc is the host-supplied bus write callback, issued only on
// genuine write cycles.
type WriteFunc func(addr uint16, val uint8)

// instrMode distinguishes how an addressing-mode stage function should
// behave: a load ends once the operand is read, a store ends once the
// address is known (the value is written on the following tick), and a
// read-modify-write always performs one extra dummy write of the
// unmodified value before the opcode body supplies the final write.
type instrMode int

const (
	modeLoad instrMode = iota
	modeStore
	modeRMW
)

// cycleFunc is one cycle's worth of work: exactly one bus access, plus
// whatever register/PC/scratch bookkeeping belongs on that cycle. It
// returns true once the instruction (or reset/interrupt entry) has
// completed on this tick.
type cycleFunc func(c *CPU) (bool, error)

// addrFunc is a per-cycle address-mode stage function, parameterized by
// which kind of instruction is using it (load/store/rmw), matching
// spec §4.3's stage table.
type addrFunc func(c *CPU, mode instrMode) (bool, error)

// Registers is a point-in-time snapshot of the programmer-visible CPU
// state, returned by get_regs (spec §6).
type Registers struct {
	PC     uint16
	A      uint8
	X      uint8
	Y      uint8
	SP     uint8
	Status uint8
}

// CPU is a single NMOS 6502 core. It is single-threaded and
// non-reentrant: one Step call advances exactly one bus cycle, and the
// host is solely responsible for scheduling those calls and for
// asserting/releasing IRQ, NMI, SO and RDY between them.
type CPU struct {
	// Programmer-visible registers.
	A      uint8
	X      uint8
	Y      uint8
	SP     uint8
	P      uint8
	PC     uint16
	opcode uint8

	read  ReadFunc
	write WriteFunc

	// Dispatcher cursor state (spec §3/§4.2): the next micro-step to
	// run, assigned once at instruction fetch and re-invoked every Step
	// until the instruction completes.
	addressModeCycleFn cycleFunc

	// Per-instruction scratch. ea/ia/value/lo alias the data model's
	// ea/ra and ia/oldpc pairs; kept as distinct fields here since Go
	// has no union types and the invariant (never both live across a
	// cycle boundary) doesn't require physical aliasing to hold.
	ea            uint16 // effective address, or the branch target while a branch is resolving
	ia            uint16 // indirect pointer address / interrupt vector address
	value         uint8  // operand byte produced by the address mode, consumed by the opcode
	lo            uint8  // scratch low byte while assembling a 16 bit address
	crossed       bool   // set mid-address-mode when indexing crossed a page
	addrDone      bool   // true once the current address mode has produced ea/value
	rmwWroteDummy bool   // true once an RMW instruction's dummy write-back has happened
	willWriteNext bool   // true when the cycle about to run will issue a write, not a read

	cycle int // tick count within the current instruction/reset/interrupt entry; 0 means the next Step starts a new one

	// Interrupt latches (spec §3, §4.6).
	nmiLine                     bool
	nmiPrevLine                 bool
	nmiPending                  bool
	irqLine                     bool
	cliMaskingInterrupt         bool
	branchTakenMaskingInterrupt bool

	servicingReset     bool
	servicingInterrupt bool
	interruptIsNMI     bool

	// RDY input (spec §4.7). Disabled by default since the 1541 core
	// never wires it; SetRDY(true) means the signal is asserted
	// (matching the assert_x naming of IRQ/NMI), i.e. a halt request.
	rdyEnabled  bool
	rdyAsserted bool
	rdyHalted   bool

	jammed    bool
	jamOpcode uint8
}

// New constructs a CPU bound to the given bus callbacks and runs it
// through a power-on reset. Either callback being nil is the one
// constructor-time failure the core can report (spec §7); everything
// else is defined behavior for the life of the CPU.
func New(read ReadFunc, write WriteFunc) (*CPU, error) {
	if read == nil || write == nil {
		return nil, InvalidState{Reason: "read and write bus functions must be non-nil"}
	}
	c := &CPU{
		read:  read,
		write: write,
		P:     FlagU,
	}
	c.Reset()
	// Drive the 7 cycle reset sequence to completion so a freshly
	// constructed CPU is immediately ready to execute, matching the
	// external contract's "construct ... call Reset" (spec §6).
	for i := 0; i < 7; i++ {
		if err := c.Step(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// EnableRDY turns on RDY handling. 1541 firmware doesn't use RDY, so it
// defaults to disabled (spec §9); a host that needs it (e.g. a VIC-II
// style bus master stalling the CPU) must opt in explicitly.
func (c *CPU) EnableRDY(enabled bool) {
	c.rdyEnabled = enabled
}

// Reset arms a 7-cycle reset sequence that begins on the next Step
// call (spec §6). It does not itself consume a cycle.
func (c *CPU) Reset() {
	c.servicingReset = true
	c.cycle = 0
}

// AssertIRQ raises the level-sensitive IRQ line.
func (c *CPU) AssertIRQ() {
	c.irqLine = true
}

// ReleaseIRQ lowers the IRQ line.
func (c *CPU) ReleaseIRQ() {
	c.irqLine = false
}

// AssertNMI raises the NMI line. NMI is edge triggered: a service only
// fires on the released-to-asserted transition, not for as long as the
// line stays high (spec §4.6).
func (c *CPU) AssertNMI() {
	c.nmiLine = true
}

// ReleaseNMI lowers the NMI line, arming it for the next rising edge.
func (c *CPU) ReleaseNMI() {
	c.nmiLine = false
}

// SetOverflow sets the V flag immediately and unconditionally,
// emulating the 6502's SO pin (spec §4.7).
func (c *CPU) SetOverflow() {
	c.P |= FlagV
}

// SetRDY asserts or releases the RDY input. When enabled and asserted,
// the CPU halts on its next read cycle; a write already committed to
// completes (spec §4.7).
func (c *CPU) SetRDY(asserted bool) {
	c.rdyAsserted = asserted
}

// Sync reports whether the next Step call will begin a new instruction
// fetch (or the start of a reset/interrupt entry sequence).
func (c *CPU) Sync() bool {
	return c.cycle == 0
}

// Halted reports whether the CPU is currently unable to make forward
// progress: either RDY-halted or JAMmed on an undocumented halt opcode.
func (c *CPU) Halted() bool {
	return c.jammed || c.rdyHalted
}

// Registers returns a snapshot of the programmer-visible CPU state.
func (c *CPU) Registers() Registers {
	return Registers{
		PC:     c.PC,
		A:      c.A,
		X:      c.X,
		Y:      c.Y,
		SP:     c.SP,
		Status: c.P,
	}
}

func (c *CPU) zeroCheck(v uint8) {
	c.P &^= FlagZ
	if v == 0 {
		c.P |= FlagZ
	}
}

func (c *CPU) negativeCheck(v uint8) {
	c.P &^= FlagN
	if v&FlagN != 0 {
		c.P |= FlagN
	}
}

// carryCheck sets C if the 8 bit ALU result, computed as a 16 bit (or
// wider, for BCD intermediate sums) value, produced a carry out.
func (c *CPU) carryCheck(res uint16) {
	c.P &^= FlagC
	if res >= 0x100 {
		c.P |= FlagC
	}
}

// overflowCheck sets V when the two operands' shared sign differs from
// the result's sign — a signed overflow. See
// http://www.righto.com/2012/12/the-6502-overflow-flag-explained.html.
func (c *CPU) overflowCheck(reg, arg, res uint8) {
	c.P &^= FlagV
	if (reg^res)&(arg^res)&0x80 != 0 {
		c.P |= FlagV
	}
}

func (c *CPU) pushStack(val uint8) {
	c.write(0x0100+uint16(c.SP), val)
	c.SP--
}

func (c *CPU) popStack() uint8 {
	c.SP++
	return c.read(0x0100 + uint16(c.SP))
}

// loadRegister stores val into reg and updates N/Z from it. Used
// directly for the single-tick transfer/inc/dec opcodes and indirectly
// (via loadA/loadX/loadY) for load instructions that go through the
// address-mode machinery.
func (c *CPU) loadRegister(reg *uint8, val uint8) (bool, error) {
	*reg = val
	c.zeroCheck(val)
	c.negativeCheck(val)
	return true, nil
}

func invalidTick(fn string, cycle int) error {
	return InvalidState{Reason: fmt.Sprintf("%s: invalid cycle %d", fn, cycle)}
}

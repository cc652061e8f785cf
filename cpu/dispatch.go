package cpu

// Step advances the CPU by exactly one clock cycle, performing exactly
// one bus read or write (spec §4.1), except while halted — a halted
// Step still issues a read so the bus observes one access per call,
// but does not advance any internal state.
func (c *CPU) Step() error {
	if c.jammed {
		c.read(c.PC)
		return JammedError{Opcode: c.jamOpcode}
	}

	// RDY only ever halts ahead of a read cycle; a write already
	// committed to always completes (spec §4.7). willWriteNext is
	// forecast by the previous cycle's stage function (store/rmw/the
	// push-style opcodes are the only ones that ever set it), so by
	// the time Step is called again the direction of the upcoming
	// cycle is already known without having to run it first.
	if c.rdyEnabled && c.rdyAsserted && !c.willWriteNext {
		c.read(c.PC)
		c.rdyHalted = true
		return nil
	}
	c.rdyHalted = false

	if c.nmiLine && !c.nmiPrevLine {
		c.nmiPending = true
	}
	c.nmiPrevLine = c.nmiLine

	c.cycle++

	var (
		done bool
		err  error
	)
	if c.cycle == 1 {
		done, err = c.stepFetch()
	} else {
		done, err = c.dispatchCurrent()
	}
	if err != nil {
		c.jammed = true
		c.jamOpcode = c.opcode
		c.cycle = 0
		return err
	}
	if done {
		c.cycle = 0
		wasNMI := c.interruptIsNMI
		c.servicingReset = false
		if c.servicingInterrupt {
			c.servicingInterrupt = false
			if wasNMI {
				c.nmiPending = false
			}
		}
	}
	return nil
}

// stepFetch runs the first cycle of whatever unit of work comes next:
// a reset, an interrupt entry, or a normal instruction fetch. Interrupt
// polling happens here, at the instruction boundary, matching real
// hardware's "sampled during the last cycle of the previous
// instruction" behavior closely enough for this core's purposes.
func (c *CPU) stepFetch() (bool, error) {
	// Cycle 2 of whatever comes next — a normal opcode's generic
	// operand read, a dummy reset/interrupt-entry read — is always a
	// read, so this is the one place every new unit of work starts
	// from a known bus direction.
	c.willWriteNext = false

	if c.servicingReset {
		return c.beginReset()
	}

	// A same-page taken branch or a CLI both suppress interrupt recognition for
	// exactly the fetch immediately following them (spec §4.6); the
	// flags are one-shot, consumed here regardless of whether an
	// interrupt was actually pending.
	masked := c.cliMaskingInterrupt || c.branchTakenMaskingInterrupt
	c.cliMaskingInterrupt = false
	c.branchTakenMaskingInterrupt = false

	if !masked {
		if c.nmiPending {
			c.servicingInterrupt = true
			c.interruptIsNMI = true
			return c.beginInterruptEntry()
		}
		if c.irqLine && c.P&FlagI == 0 {
			c.servicingInterrupt = true
			c.interruptIsNMI = false
			return c.beginInterruptEntry()
		}
	}

	c.opcode = c.read(c.PC)
	c.PC++
	c.addrDone = false
	c.addressModeCycleFn = opcodeTable[c.opcode]
	return false, nil
}

// dispatchCurrent runs cycle 2 and onward of whatever unit of work was
// chosen at stepFetch. Cycle 2 of a normal opcode always performs the
// generic "read the byte after the opcode" bus access before handing
// control to the address-mode stage function, mirroring how every
// 6502 instruction begins the same way regardless of what it turns out
// to need that byte for.
func (c *CPU) dispatchCurrent() (bool, error) {
	if c.servicingReset {
		return c.stepReset()
	}
	if c.servicingInterrupt {
		return c.stepInterruptEntry()
	}

	if c.cycle == 2 {
		c.value = c.read(c.PC)
	}
	if c.addressModeCycleFn == nil {
		return false, invalidTick("dispatchCurrent", c.cycle)
	}
	return c.addressModeCycleFn(c)
}

// load builds a cycleFunc for a load-type instruction: addrFn drives
// the bus until the operand is available, then bodyFn consumes it.
func load(addrFn addrFunc, bodyFn func(c *CPU) (bool, error)) cycleFunc {
	return func(c *CPU) (bool, error) {
		if !c.addrDone {
			done, err := addrFn(c, modeLoad)
			if err != nil || !done {
				return false, err
			}
			c.addrDone = true
		}
		return bodyFn(c)
	}
}

// rmw builds a cycleFunc for a read-modify-write instruction. addrFn
// drives the bus until ea/value (the operand) are ready; RMW then
// always spends one cycle writing the unmodified value back (real
// silicon can't un-read a cycle it already committed to) before
// computeFn derives the new value, which is written on the final
// cycle.
func rmw(addrFn addrFunc, computeFn func(c *CPU) uint8) cycleFunc {
	return func(c *CPU) (bool, error) {
		if !c.addrDone {
			done, err := addrFn(c, modeRMW)
			if err != nil {
				return false, err
			}
			if done {
				c.addrDone = true
			}
			// Once the address is known, every remaining cycle of an
			// RMW instruction (the dummy write-back, then the real
			// one) is a write.
			c.willWriteNext = c.addrDone
			return false, nil
		}
		if !c.rmwWroteDummy {
			c.write(c.ea, c.value)
			c.rmwWroteDummy = true
			c.willWriteNext = true
			return false, nil
		}
		newVal := computeFn(c)
		c.write(c.ea, newVal)
		c.rmwWroteDummy = false
		c.addrDone = false
		c.willWriteNext = false
		return true, nil
	}
}

// store builds a cycleFunc for a store-type instruction: addrFn drives
// the bus until ea is known (its own cycle), and only on the following
// cycle is valFn (evaluated lazily, since it may read a register whose
// value isn't fixed until write time) written to ea — keeping the
// address computation and the write on separate bus cycles.
func store(addrFn addrFunc, valFn func(c *CPU) uint8) cycleFunc {
	return func(c *CPU) (bool, error) {
		if !c.addrDone {
			done, err := addrFn(c, modeStore)
			if err != nil {
				return false, err
			}
			if done {
				c.addrDone = true
			}
			c.willWriteNext = c.addrDone
			return false, nil
		}
		c.write(c.ea, valFn(c))
		c.addrDone = false
		c.willWriteNext = false
		return true, nil
	}
}

// single builds a cycleFunc for the many two-cycle-total opcodes
// (register transfers, flag clear/set, INX/DEY, NOP, ...): the whole
// opcode executes on cycle 2, with no addressing mode at all.
func single(bodyFn func(c *CPU) (bool, error)) cycleFunc {
	return func(c *CPU) (bool, error) {
		return bodyFn(c)
	}
}

package cpu

// opcodeTable maps every one of the 256 possible opcode bytes to the
// cycleFunc that drives it. It's built once, in init(), rather than
// being re-derived by a switch statement on every tick: the dispatcher
// (dispatch.go) assigns a table entry to addressModeCycleFn at fetch
// time and just keeps calling it until the instruction is done.
var opcodeTable [256]cycleFunc

func loadA(c *CPU) (bool, error) { return c.loadRegister(&c.A, c.value) }
func loadX(c *CPU) (bool, error) { return c.loadRegister(&c.X, c.value) }
func loadY(c *CPU) (bool, error) { return c.loadRegister(&c.Y, c.value) }

func opADC(c *CPU) (bool, error) { c.adc(c.value); return true, nil }
func opSBC(c *CPU) (bool, error) { c.sbc(c.value); return true, nil }
func opAND(c *CPU) (bool, error) { return c.loadRegister(&c.A, c.A&c.value) }
func opORA(c *CPU) (bool, error) { return c.loadRegister(&c.A, c.A|c.value) }
func opEOR(c *CPU) (bool, error) { return c.loadRegister(&c.A, c.A^c.value) }
func opBIT(c *CPU) (bool, error) { c.bit(c.value); return true, nil }
func opCMP(c *CPU) (bool, error) { c.compare(c.A, c.value); return true, nil }
func opCPX(c *CPU) (bool, error) { c.compare(c.X, c.value); return true, nil }
func opCPY(c *CPU) (bool, error) { c.compare(c.Y, c.value); return true, nil }

// adc performs binary or BCD addition with carry, per spec §4.4 and
// this project's Open Question resolution: N/Z/V are derived from the
// pre-adjustment binary sum in decimal mode (DESIGN.md).
func (c *CPU) adc(val uint8) {
	if c.P&FlagD != 0 {
		c.adcDecimal(val)
		return
	}
	sum := uint16(c.A) + uint16(val) + uint16(c.P&FlagC)
	result := uint8(sum)
	c.overflowCheck(c.A, val, result)
	c.carryCheck(sum)
	c.A = result
	c.zeroCheck(result)
	c.negativeCheck(result)
}

func (c *CPU) adcDecimal(val uint8) {
	carry := uint16(c.P & FlagC)
	binSum := uint16(c.A) + uint16(val) + carry
	binResult := uint8(binSum)
	c.overflowCheck(c.A, val, binResult)
	c.zeroCheck(binResult)
	c.negativeCheck(binResult)

	al := int(c.A&0x0F) + int(val&0x0F) + int(carry)
	ah := int(c.A>>4) + int(val>>4)
	if al > 9 {
		al += 6
		ah++
	}
	c.P &^= FlagC
	if ah > 9 {
		ah += 6
		c.P |= FlagC
	}
	c.A = uint8((ah<<4)&0xF0) | uint8(al&0x0F)
}

// sbc is implemented as ADC of the one's complement of val, the
// standard trick that reuses the same carry/overflow arithmetic.
func (c *CPU) sbc(val uint8) {
	if c.P&FlagD != 0 {
		c.sbcDecimal(val)
		return
	}
	notVal := ^val
	sum := uint16(c.A) + uint16(notVal) + uint16(c.P&FlagC)
	result := uint8(sum)
	c.overflowCheck(c.A, notVal, result)
	c.carryCheck(sum)
	c.A = result
	c.zeroCheck(result)
	c.negativeCheck(result)
}

func (c *CPU) sbcDecimal(val uint8) {
	carry := uint16(c.P & FlagC)
	notVal := ^val
	binSum := uint16(c.A) + uint16(notVal) + carry
	binResult := uint8(binSum)
	c.overflowCheck(c.A, notVal, binResult)
	c.carryCheck(binSum)
	c.zeroCheck(binResult)
	c.negativeCheck(binResult)

	al := int(c.A&0x0F) - int(val&0x0F) - int(1-carry)
	ah := int(c.A>>4) - int(val>>4)
	if al < 0 {
		al -= 6
		ah--
	}
	if ah < 0 {
		ah -= 6
	}
	c.A = uint8((ah<<4)&0xF0) | uint8(al&0x0F)
}

func (c *CPU) compare(reg, val uint8) {
	result := reg - val
	c.P &^= FlagC
	if reg >= val {
		c.P |= FlagC
	}
	c.zeroCheck(result)
	c.negativeCheck(result)
}

func (c *CPU) bit(val uint8) {
	c.P &^= FlagZ | FlagV | FlagN
	if c.A&val == 0 {
		c.P |= FlagZ
	}
	if val&FlagV != 0 {
		c.P |= FlagV
	}
	if val&FlagN != 0 {
		c.P |= FlagN
	}
}

func (c *CPU) aslVal(v uint8) uint8 {
	c.P &^= FlagC
	if v&0x80 != 0 {
		c.P |= FlagC
	}
	res := v << 1
	c.zeroCheck(res)
	c.negativeCheck(res)
	return res
}

func (c *CPU) lsrVal(v uint8) uint8 {
	c.P &^= FlagC
	if v&0x01 != 0 {
		c.P |= FlagC
	}
	res := v >> 1
	c.zeroCheck(res)
	c.negativeCheck(res)
	return res
}

func (c *CPU) rolVal(v uint8) uint8 {
	carryIn := c.P & FlagC
	c.P &^= FlagC
	if v&0x80 != 0 {
		c.P |= FlagC
	}
	res := (v << 1) | carryIn
	c.zeroCheck(res)
	c.negativeCheck(res)
	return res
}

func (c *CPU) rorVal(v uint8) uint8 {
	var carryIn uint8
	if c.P&FlagC != 0 {
		carryIn = 0x80
	}
	c.P &^= FlagC
	if v&0x01 != 0 {
		c.P |= FlagC
	}
	res := (v >> 1) | carryIn
	c.zeroCheck(res)
	c.negativeCheck(res)
	return res
}

func (c *CPU) incVal(v uint8) uint8 {
	res := v + 1
	c.zeroCheck(res)
	c.negativeCheck(res)
	return res
}

func (c *CPU) decVal(v uint8) uint8 {
	res := v - 1
	c.zeroCheck(res)
	c.negativeCheck(res)
	return res
}

// iPHA/iPLA/iPHP/iPLP implement the stack opcodes directly rather than
// through load/store/rmw: they have no addressing mode at all, just a
// fixed number of cycles against the S register.
func (c *CPU) iPHA() (bool, error) {
	switch c.cycle {
	case 2:
		c.willWriteNext = true
		return false, nil
	case 3:
		c.pushStack(c.A)
		c.willWriteNext = false
		return true, nil
	}
	return false, invalidTick("iPHA", c.cycle)
}

func (c *CPU) iPHP() (bool, error) {
	switch c.cycle {
	case 2:
		c.willWriteNext = true
		return false, nil
	case 3:
		c.pushStack(c.P | FlagB | FlagU)
		c.willWriteNext = false
		return true, nil
	}
	return false, invalidTick("iPHP", c.cycle)
}

func (c *CPU) iPLA() (bool, error) {
	switch c.cycle {
	case 2:
		return false, nil
	case 3:
		c.read(0x0100 + uint16(c.SP))
		return false, nil
	case 4:
		val := c.popStack()
		c.A = val
		c.zeroCheck(val)
		c.negativeCheck(val)
		return true, nil
	}
	return false, invalidTick("iPLA", c.cycle)
}

func (c *CPU) iPLP() (bool, error) {
	switch c.cycle {
	case 2:
		return false, nil
	case 3:
		c.read(0x0100 + uint16(c.SP))
		return false, nil
	case 4:
		val := c.popStack()
		c.P = (val | FlagU) &^ FlagB
		return true, nil
	}
	return false, invalidTick("iPLP", c.cycle)
}

func (c *CPU) iJSR() (bool, error) {
	switch c.cycle {
	case 2:
		c.lo = c.value
		c.PC++
		return false, nil
	case 3:
		c.read(0x0100 + uint16(c.SP))
		c.willWriteNext = true
		return false, nil
	case 4:
		c.pushStack(uint8(c.PC >> 8))
		c.willWriteNext = true
		return false, nil
	case 5:
		c.pushStack(uint8(c.PC))
		c.willWriteNext = false
		return false, nil
	case 6:
		hi := c.read(c.PC)
		c.PC = uint16(hi)<<8 | uint16(c.lo)
		return true, nil
	}
	return false, invalidTick("iJSR", c.cycle)
}

func (c *CPU) iRTS() (bool, error) {
	switch c.cycle {
	case 2:
		return false, nil
	case 3:
		c.read(0x0100 + uint16(c.SP))
		return false, nil
	case 4:
		c.lo = c.popStack()
		return false, nil
	case 5:
		hi := c.popStack()
		c.PC = uint16(hi)<<8 | uint16(c.lo)
		return false, nil
	case 6:
		c.read(c.PC)
		c.PC++
		return true, nil
	}
	return false, invalidTick("iRTS", c.cycle)
}

func (c *CPU) iRTI() (bool, error) {
	switch c.cycle {
	case 2:
		return false, nil
	case 3:
		c.read(0x0100 + uint16(c.SP))
		return false, nil
	case 4:
		val := c.popStack()
		c.P = (val | FlagU) &^ FlagB
		return false, nil
	case 5:
		c.lo = c.popStack()
		return false, nil
	case 6:
		hi := c.popStack()
		c.PC = uint16(hi)<<8 | uint16(c.lo)
		return true, nil
	}
	return false, invalidTick("iRTI", c.cycle)
}

func (c *CPU) iJMP() (bool, error) {
	switch c.cycle {
	case 2:
		c.lo = c.value
		c.PC++
		return false, nil
	case 3:
		hi := c.read(c.PC)
		c.PC = uint16(hi)<<8 | uint16(c.lo)
		return true, nil
	}
	return false, invalidTick("iJMP", c.cycle)
}

// iJMPIndirect reproduces the classic page-wrap bug: if the pointer's
// low byte is 0xFF, the high byte is fetched from the start of the
// same page instead of the next one.
func (c *CPU) iJMPIndirect() (bool, error) {
	switch c.cycle {
	case 2:
		c.lo = c.value
		c.PC++
		return false, nil
	case 3:
		hi := c.read(c.PC)
		c.PC++
		c.ia = uint16(hi)<<8 | uint16(c.lo)
		return false, nil
	case 4:
		c.lo = c.read(c.ia)
		return false, nil
	case 5:
		hiAddr := (c.ia & 0xFF00) | uint16(uint8(c.ia)+1)
		hi := c.read(hiAddr)
		c.PC = uint16(hi)<<8 | uint16(c.lo)
		return true, nil
	}
	return false, invalidTick("iJMPIndirect", c.cycle)
}

func init() {
	// Loads.
	opcodeTable[0xA9] = load(func(c *CPU, m instrMode) (bool, error) { return c.addrImmediate(m) }, loadA)
	opcodeTable[0xA5] = load(addrZP_, loadA)
	opcodeTable[0xB5] = load(addrZPX_, loadA)
	opcodeTable[0xAD] = load(addrAbsolute_, loadA)
	opcodeTable[0xBD] = load(addrAbsoluteX_, loadA)
	opcodeTable[0xB9] = load(addrAbsoluteY_, loadA)
	opcodeTable[0xA1] = load(addrIndirectX_, loadA)
	opcodeTable[0xB1] = load(addrIndirectY_, loadA)

	opcodeTable[0xA2] = load(func(c *CPU, m instrMode) (bool, error) { return c.addrImmediate(m) }, loadX)
	opcodeTable[0xA6] = load(addrZP_, loadX)
	opcodeTable[0xB6] = load(addrZPY_, loadX)
	opcodeTable[0xAE] = load(addrAbsolute_, loadX)
	opcodeTable[0xBE] = load(addrAbsoluteY_, loadX)

	opcodeTable[0xA0] = load(func(c *CPU, m instrMode) (bool, error) { return c.addrImmediate(m) }, loadY)
	opcodeTable[0xA4] = load(addrZP_, loadY)
	opcodeTable[0xB4] = load(addrZPX_, loadY)
	opcodeTable[0xAC] = load(addrAbsolute_, loadY)
	opcodeTable[0xBC] = load(addrAbsoluteX_, loadY)

	// Stores.
	opcodeTable[0x85] = store(addrZP_, func(c *CPU) uint8 { return c.A })
	opcodeTable[0x95] = store(addrZPX_, func(c *CPU) uint8 { return c.A })
	opcodeTable[0x8D] = store(addrAbsolute_, func(c *CPU) uint8 { return c.A })
	opcodeTable[0x9D] = store(addrAbsoluteX_, func(c *CPU) uint8 { return c.A })
	opcodeTable[0x99] = store(addrAbsoluteY_, func(c *CPU) uint8 { return c.A })
	opcodeTable[0x81] = store(addrIndirectX_, func(c *CPU) uint8 { return c.A })
	opcodeTable[0x91] = store(addrIndirectY_, func(c *CPU) uint8 { return c.A })

	opcodeTable[0x86] = store(addrZP_, func(c *CPU) uint8 { return c.X })
	opcodeTable[0x96] = store(addrZPY_, func(c *CPU) uint8 { return c.X })
	opcodeTable[0x8E] = store(addrAbsolute_, func(c *CPU) uint8 { return c.X })

	opcodeTable[0x84] = store(addrZP_, func(c *CPU) uint8 { return c.Y })
	opcodeTable[0x94] = store(addrZPX_, func(c *CPU) uint8 { return c.Y })
	opcodeTable[0x8C] = store(addrAbsolute_, func(c *CPU) uint8 { return c.Y })

	// ALU: ADC/SBC/AND/ORA/EOR/CMP/CPX/CPY/BIT.
	aluGroup := func(imm, zp, zpx, abs, absx, absy, indx, indy uint8, body func(c *CPU) (bool, error)) {
		opcodeTable[imm] = load(func(c *CPU, m instrMode) (bool, error) { return c.addrImmediate(m) }, body)
		opcodeTable[zp] = load(addrZP_, body)
		opcodeTable[zpx] = load(addrZPX_, body)
		opcodeTable[abs] = load(addrAbsolute_, body)
		opcodeTable[absx] = load(addrAbsoluteX_, body)
		opcodeTable[absy] = load(addrAbsoluteY_, body)
		opcodeTable[indx] = load(addrIndirectX_, body)
		opcodeTable[indy] = load(addrIndirectY_, body)
	}
	aluGroup(0x69, 0x65, 0x75, 0x6D, 0x7D, 0x79, 0x61, 0x71, opADC)
	aluGroup(0xE9, 0xE5, 0xF5, 0xED, 0xFD, 0xF9, 0xE1, 0xF1, opSBC)
	aluGroup(0x29, 0x25, 0x35, 0x2D, 0x3D, 0x39, 0x21, 0x31, opAND)
	aluGroup(0x09, 0x05, 0x15, 0x0D, 0x1D, 0x19, 0x01, 0x11, opORA)
	aluGroup(0x49, 0x45, 0x55, 0x4D, 0x5D, 0x59, 0x41, 0x51, opEOR)
	aluGroup(0xC9, 0xC5, 0xD5, 0xCD, 0xDD, 0xD9, 0xC1, 0xD1, opCMP)

	opcodeTable[0xE0] = load(func(c *CPU, m instrMode) (bool, error) { return c.addrImmediate(m) }, opCPX)
	opcodeTable[0xE4] = load(addrZP_, opCPX)
	opcodeTable[0xEC] = load(addrAbsolute_, opCPX)
	opcodeTable[0xC0] = load(func(c *CPU, m instrMode) (bool, error) { return c.addrImmediate(m) }, opCPY)
	opcodeTable[0xC4] = load(addrZP_, opCPY)
	opcodeTable[0xCC] = load(addrAbsolute_, opCPY)
	opcodeTable[0x24] = load(addrZP_, opBIT)
	opcodeTable[0x2C] = load(addrAbsolute_, opBIT)

	// Shifts/rotates, memory form (RMW) and accumulator form.
	opcodeTable[0x0A] = single(func(c *CPU) (bool, error) { c.A = c.aslVal(c.A); return true, nil })
	opcodeTable[0x06] = rmw(addrZP_, func(c *CPU) uint8 { return c.aslVal(c.value) })
	opcodeTable[0x16] = rmw(addrZPX_, func(c *CPU) uint8 { return c.aslVal(c.value) })
	opcodeTable[0x0E] = rmw(addrAbsolute_, func(c *CPU) uint8 { return c.aslVal(c.value) })
	opcodeTable[0x1E] = rmw(addrAbsoluteX_, func(c *CPU) uint8 { return c.aslVal(c.value) })

	opcodeTable[0x4A] = single(func(c *CPU) (bool, error) { c.A = c.lsrVal(c.A); return true, nil })
	opcodeTable[0x46] = rmw(addrZP_, func(c *CPU) uint8 { return c.lsrVal(c.value) })
	opcodeTable[0x56] = rmw(addrZPX_, func(c *CPU) uint8 { return c.lsrVal(c.value) })
	opcodeTable[0x4E] = rmw(addrAbsolute_, func(c *CPU) uint8 { return c.lsrVal(c.value) })
	opcodeTable[0x5E] = rmw(addrAbsoluteX_, func(c *CPU) uint8 { return c.lsrVal(c.value) })

	opcodeTable[0x2A] = single(func(c *CPU) (bool, error) { c.A = c.rolVal(c.A); return true, nil })
	opcodeTable[0x26] = rmw(addrZP_, func(c *CPU) uint8 { return c.rolVal(c.value) })
	opcodeTable[0x36] = rmw(addrZPX_, func(c *CPU) uint8 { return c.rolVal(c.value) })
	opcodeTable[0x2E] = rmw(addrAbsolute_, func(c *CPU) uint8 { return c.rolVal(c.value) })
	opcodeTable[0x3E] = rmw(addrAbsoluteX_, func(c *CPU) uint8 { return c.rolVal(c.value) })

	opcodeTable[0x6A] = single(func(c *CPU) (bool, error) { c.A = c.rorVal(c.A); return true, nil })
	opcodeTable[0x66] = rmw(addrZP_, func(c *CPU) uint8 { return c.rorVal(c.value) })
	opcodeTable[0x76] = rmw(addrZPX_, func(c *CPU) uint8 { return c.rorVal(c.value) })
	opcodeTable[0x6E] = rmw(addrAbsolute_, func(c *CPU) uint8 { return c.rorVal(c.value) })
	opcodeTable[0x7E] = rmw(addrAbsoluteX_, func(c *CPU) uint8 { return c.rorVal(c.value) })

	opcodeTable[0xE6] = rmw(addrZP_, func(c *CPU) uint8 { return c.incVal(c.value) })
	opcodeTable[0xF6] = rmw(addrZPX_, func(c *CPU) uint8 { return c.incVal(c.value) })
	opcodeTable[0xEE] = rmw(addrAbsolute_, func(c *CPU) uint8 { return c.incVal(c.value) })
	opcodeTable[0xFE] = rmw(addrAbsoluteX_, func(c *CPU) uint8 { return c.incVal(c.value) })

	opcodeTable[0xC6] = rmw(addrZP_, func(c *CPU) uint8 { return c.decVal(c.value) })
	opcodeTable[0xD6] = rmw(addrZPX_, func(c *CPU) uint8 { return c.decVal(c.value) })
	opcodeTable[0xCE] = rmw(addrAbsolute_, func(c *CPU) uint8 { return c.decVal(c.value) })
	opcodeTable[0xDE] = rmw(addrAbsoluteX_, func(c *CPU) uint8 { return c.decVal(c.value) })

	// Branches.
	opcodeTable[0x90] = branch(func(c *CPU) bool { return c.P&FlagC == 0 })
	opcodeTable[0xB0] = branch(func(c *CPU) bool { return c.P&FlagC != 0 })
	opcodeTable[0xF0] = branch(func(c *CPU) bool { return c.P&FlagZ != 0 })
	opcodeTable[0xD0] = branch(func(c *CPU) bool { return c.P&FlagZ == 0 })
	opcodeTable[0x30] = branch(func(c *CPU) bool { return c.P&FlagN != 0 })
	opcodeTable[0x10] = branch(func(c *CPU) bool { return c.P&FlagN == 0 })
	opcodeTable[0x50] = branch(func(c *CPU) bool { return c.P&FlagV == 0 })
	opcodeTable[0x70] = branch(func(c *CPU) bool { return c.P&FlagV != 0 })

	// Flags.
	opcodeTable[0x18] = single(func(c *CPU) (bool, error) { c.P &^= FlagC; return true, nil })
	opcodeTable[0x38] = single(func(c *CPU) (bool, error) { c.P |= FlagC; return true, nil })
	opcodeTable[0xD8] = single(func(c *CPU) (bool, error) { c.P &^= FlagD; return true, nil })
	opcodeTable[0xF8] = single(func(c *CPU) (bool, error) { c.P |= FlagD; return true, nil })
	opcodeTable[0x58] = single(func(c *CPU) (bool, error) {
		c.P &^= FlagI
		c.cliMaskingInterrupt = true
		return true, nil
	})
	opcodeTable[0x78] = single(func(c *CPU) (bool, error) { c.P |= FlagI; return true, nil })
	opcodeTable[0xB8] = single(func(c *CPU) (bool, error) { c.P &^= FlagV; return true, nil })

	// Transfers / register inc-dec / NOP.
	opcodeTable[0xAA] = single(func(c *CPU) (bool, error) { return c.loadRegister(&c.X, c.A) })
	opcodeTable[0xA8] = single(func(c *CPU) (bool, error) { return c.loadRegister(&c.Y, c.A) })
	opcodeTable[0x8A] = single(func(c *CPU) (bool, error) { return c.loadRegister(&c.A, c.X) })
	opcodeTable[0x98] = single(func(c *CPU) (bool, error) { return c.loadRegister(&c.A, c.Y) })
	opcodeTable[0xBA] = single(func(c *CPU) (bool, error) { return c.loadRegister(&c.X, c.SP) })
	opcodeTable[0x9A] = single(func(c *CPU) (bool, error) { c.SP = c.X; return true, nil })
	opcodeTable[0xE8] = single(func(c *CPU) (bool, error) { return c.loadRegister(&c.X, c.X+1) })
	opcodeTable[0xC8] = single(func(c *CPU) (bool, error) { return c.loadRegister(&c.Y, c.Y+1) })
	opcodeTable[0xCA] = single(func(c *CPU) (bool, error) { return c.loadRegister(&c.X, c.X-1) })
	opcodeTable[0x88] = single(func(c *CPU) (bool, error) { return c.loadRegister(&c.Y, c.Y-1) })
	opcodeTable[0xEA] = single(func(c *CPU) (bool, error) { return true, nil })

	// Stack / subroutine / flow control.
	opcodeTable[0x48] = func(c *CPU) (bool, error) { return c.iPHA() }
	opcodeTable[0x08] = func(c *CPU) (bool, error) { return c.iPHP() }
	opcodeTable[0x68] = func(c *CPU) (bool, error) { return c.iPLA() }
	opcodeTable[0x28] = func(c *CPU) (bool, error) { return c.iPLP() }
	opcodeTable[0x20] = func(c *CPU) (bool, error) { return c.iJSR() }
	opcodeTable[0x60] = func(c *CPU) (bool, error) { return c.iRTS() }
	opcodeTable[0x40] = func(c *CPU) (bool, error) { return c.iRTI() }
	opcodeTable[0x4C] = func(c *CPU) (bool, error) { return c.iJMP() }
	opcodeTable[0x6C] = func(c *CPU) (bool, error) { return c.iJMPIndirect() }
	opcodeTable[0x00] = func(c *CPU) (bool, error) { return c.interruptPushSequence(true, true) }
}

// Thin addrFunc-shaped wrappers so the table construction above reads
// as a matrix rather than a wall of method expressions.
func addrZP_(c *CPU, m instrMode) (bool, error)          { return c.addrZP(m) }
func addrZPX_(c *CPU, m instrMode) (bool, error)         { return c.addrZPX(m) }
func addrZPY_(c *CPU, m instrMode) (bool, error)         { return c.addrZPY(m) }
func addrAbsolute_(c *CPU, m instrMode) (bool, error)    { return c.addrAbsolute(m) }
func addrAbsoluteX_(c *CPU, m instrMode) (bool, error)   { return c.addrAbsoluteX(m) }
func addrAbsoluteY_(c *CPU, m instrMode) (bool, error)   { return c.addrAbsoluteY(m) }
func addrIndirectX_(c *CPU, m instrMode) (bool, error)   { return c.addrIndirectX(m) }
func addrIndirectY_(c *CPU, m instrMode) (bool, error)   { return c.addrIndirectY(m) }

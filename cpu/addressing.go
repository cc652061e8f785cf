package cpu

// addrImmediate treats the byte the generic cycle-2 read already
// fetched as the operand itself; only PC needs to move past it. Only
// read instructions use immediate addressing.
func (c *CPU) addrImmediate(mode instrMode) (bool, error) {
	if c.cycle != 2 {
		return false, invalidTick("addrImmediate", c.cycle)
	}
	c.ea = c.PC
	c.PC++
	return true, nil
}

// addrZP resolves a zero-page operand. The generic cycle-2 read
// already supplied the address byte; a load or RMW needs one further
// cycle to read the operand, while a store is ready to write as soon
// as the address is known.
func (c *CPU) addrZP(mode instrMode) (bool, error) {
	switch c.cycle {
	case 2:
		c.ea = uint16(c.value)
		c.PC++
		if mode == modeStore {
			return true, nil
		}
		return false, nil
	case 3:
		c.value = c.read(c.ea)
		return true, nil
	}
	return false, invalidTick("addrZP", c.cycle)
}

// addrZPIndexed builds a zero-page,reg addressing stage. Real hardware
// spends a cycle reading the unindexed address before the index is
// folded in (and wrapped within the zero page), regardless of whether
// the caller is going to load, store, or read-modify-write it.
func addrZPIndexed(regOf func(c *CPU) uint8) addrFunc {
	return func(c *CPU, mode instrMode) (bool, error) {
		switch c.cycle {
		case 2:
			c.ea = uint16(c.value)
			c.PC++
			return false, nil
		case 3:
			c.read(c.ea)
			c.ea = uint16(uint8(c.value) + regOf(c))
			if mode == modeStore {
				return true, nil
			}
			return false, nil
		case 4:
			c.value = c.read(c.ea)
			return true, nil
		}
		return false, invalidTick("addrZPIndexed", c.cycle)
	}
}

func (c *CPU) addrZPX(mode instrMode) (bool, error) {
	return addrZPIndexed(func(c *CPU) uint8 { return c.X })(c, mode)
}

func (c *CPU) addrZPY(mode instrMode) (bool, error) {
	return addrZPIndexed(func(c *CPU) uint8 { return c.Y })(c, mode)
}

// addrAbsolute resolves a 2-byte absolute address.
func (c *CPU) addrAbsolute(mode instrMode) (bool, error) {
	switch c.cycle {
	case 2:
		c.lo = c.value
		c.PC++
		return false, nil
	case 3:
		hi := c.read(c.PC)
		c.PC++
		c.ea = uint16(hi)<<8 | uint16(c.lo)
		if mode == modeStore {
			return true, nil
		}
		return false, nil
	case 4:
		c.value = c.read(c.ea)
		return true, nil
	}
	return false, invalidTick("addrAbsolute", c.cycle)
}

// addrAbsoluteIndexed builds an absolute,reg addressing stage. A load
// can shortcut by one cycle when indexing didn't cross a page boundary
// (the candidate address was already right); a store or
// read-modify-write always pays the extra cycle, since the CPU can't
// safely commit a write before it knows the address is correct.
func addrAbsoluteIndexed(regOf func(c *CPU) uint8) addrFunc {
	return func(c *CPU, mode instrMode) (bool, error) {
		switch c.cycle {
		case 2:
			c.lo = c.value
			c.PC++
			return false, nil
		case 3:
			hi := c.read(c.PC)
			c.PC++
			base := uint16(hi)<<8 | uint16(c.lo)
			idx := regOf(c)
			sum := int(uint8(base)) + int(idx)
			c.crossed = sum > 0xFF
			c.ea = (base & 0xFF00) | uint16(uint8(sum))
			return false, nil
		case 4:
			val := c.read(c.ea)
			if mode == modeLoad && !c.crossed {
				c.value = val
				return true, nil
			}
			if c.crossed {
				c.ea += 0x100
			}
			if mode == modeStore {
				return true, nil
			}
			return false, nil
		case 5:
			c.value = c.read(c.ea)
			return true, nil
		}
		return false, invalidTick("addrAbsoluteIndexed", c.cycle)
	}
}

func (c *CPU) addrAbsoluteX(mode instrMode) (bool, error) {
	return addrAbsoluteIndexed(func(c *CPU) uint8 { return c.X })(c, mode)
}

func (c *CPU) addrAbsoluteY(mode instrMode) (bool, error) {
	return addrAbsoluteIndexed(func(c *CPU) uint8 { return c.Y })(c, mode)
}

// addrIndirectX resolves (zp,X): the zero page pointer is indexed by X
// (wrapping within the zero page) before the two pointer bytes are
// read.
func (c *CPU) addrIndirectX(mode instrMode) (bool, error) {
	switch c.cycle {
	case 2:
		c.ia = uint16(c.value)
		c.PC++
		return false, nil
	case 3:
		c.read(c.ia)
		c.ia = uint16(uint8(c.value) + c.X)
		return false, nil
	case 4:
		c.lo = c.read(c.ia)
		return false, nil
	case 5:
		hi := c.read((c.ia + 1) & 0xFF)
		c.ea = uint16(hi)<<8 | uint16(c.lo)
		if mode == modeStore {
			return true, nil
		}
		return false, nil
	case 6:
		c.value = c.read(c.ea)
		return true, nil
	}
	return false, invalidTick("addrIndirectX", c.cycle)
}

// addrIndirectY resolves (zp),Y: the zero page pointer is read intact,
// and Y is folded into the resulting 16-bit address afterward — so,
// unlike (zp,X), a page cross here needs the absolute-indexed shortcut
// logic rather than a zero-page wrap.
func (c *CPU) addrIndirectY(mode instrMode) (bool, error) {
	switch c.cycle {
	case 2:
		c.ia = uint16(c.value)
		c.PC++
		return false, nil
	case 3:
		c.lo = c.read(c.ia)
		return false, nil
	case 4:
		hi := c.read((c.ia + 1) & 0xFF)
		base := uint16(hi)<<8 | uint16(c.lo)
		sum := int(c.lo) + int(c.Y)
		c.crossed = sum > 0xFF
		c.ea = (base & 0xFF00) | uint16(uint8(sum))
		return false, nil
	case 5:
		val := c.read(c.ea)
		if mode == modeLoad && !c.crossed {
			c.value = val
			return true, nil
		}
		if c.crossed {
			c.ea += 0x100
		}
		if mode == modeStore {
			return true, nil
		}
		return false, nil
	case 6:
		c.value = c.read(c.ea)
		return true, nil
	}
	return false, invalidTick("addrIndirectY", c.cycle)
}

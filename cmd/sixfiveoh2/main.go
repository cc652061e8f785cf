// Command sixfiveoh2 is a minimal batch harness for the cpu package: it
// loads a flat binary image into RAM, points the reset vector at a load
// address, runs the core for a requested number of instructions or
// cycles, and prints the final register snapshot. It never decodes
// mnemonics or traces execution - this is a test harness for the core,
// not a disassembler.
package main

import (
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/davecgh/go-spew/spew"
	"gopkg.in/urfave/cli.v2"

	"github.com/idolpx/esp1541/cpu"
	"github.com/idolpx/esp1541/memory"
)

func main() {
	app := &cli.App{
		Name:    "sixfiveoh2",
		Usage:   "Run a flat 6502 binary image against the cpu core and print final registers",
		Version: "v0.0.1",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "image",
				Aliases:  []string{"i"},
				Usage:    "path to the flat binary image to load",
				Required: true,
			},
			&cli.UintFlag{
				Name:    "load-addr",
				Aliases: []string{"l"},
				Usage:   "address to load the image at; also becomes the reset vector",
				Value:   0x0200,
			},
			&cli.UintFlag{
				Name:    "ram-size",
				Usage:   "size of the flat RAM bank backing the bus, must be a power of 2",
				Value:   1 << 16,
			},
			&cli.IntFlag{
				Name:    "instructions",
				Aliases: []string{"n"},
				Usage:   "number of instructions to execute; 0 means run by cycle count instead",
				Value:   0,
			},
			&cli.IntFlag{
				Name:  "cycles",
				Usage: "number of bus cycles to execute when -instructions is 0",
				Value: 1000,
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "dump the register snapshot after every instruction boundary",
			},
		},
		Action: run,
	}

	sort.Sort(cli.FlagsByName(app.Flags))
	if err := app.Run(os.Args); err != nil {
		log.Fatalf("sixfiveoh2: %v", err)
	}
}

func run(ctx *cli.Context) error {
	imagePath := ctx.String("image")
	loadAddr := uint16(ctx.Uint("load-addr"))
	ramSize := int(ctx.Uint("ram-size"))
	instructions := ctx.Int("instructions")
	cycles := ctx.Int("cycles")
	verbose := ctx.Bool("verbose")

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("can't read image %q: %w", imagePath, err)
	}

	bank, err := memory.New8BitRAMBank(ramSize, nil)
	if err != nil {
		return fmt.Errorf("can't create RAM bank: %w", err)
	}
	bus, err := memory.NewOpenBus(bank, ramSize, 0)
	if err != nil {
		return fmt.Errorf("can't create bus: %w", err)
	}
	bus.Load(loadAddr, data)
	bus.Write(cpu.ResetVector, uint8(loadAddr))
	bus.Write(cpu.ResetVector+1, uint8(loadAddr>>8))

	c, err := cpu.New(bus.Read, bus.Write)
	if err != nil {
		return fmt.Errorf("can't construct cpu: %w", err)
	}

	ran := 0
	stepAndMaybeDump := func() error {
		if err := c.Step(); err != nil {
			return fmt.Errorf("step %d: %w", ran, err)
		}
		if verbose && c.Sync() {
			log.Printf("instruction boundary:\n%s", spew.Sdump(c.Registers()))
		}
		return nil
	}

	if instructions > 0 {
		for i := 0; i < instructions; i++ {
			if err := stepAndMaybeDump(); err != nil {
				return err
			}
			ran++
			for !c.Sync() {
				if err := stepAndMaybeDump(); err != nil {
					return err
				}
				ran++
			}
		}
	} else {
		for i := 0; i < cycles; i++ {
			if err := stepAndMaybeDump(); err != nil {
				return err
			}
			ran++
		}
	}

	regs := c.Registers()
	fmt.Printf("ran %d cycles\n", ran)
	fmt.Printf("PC=%#04x A=%#02x X=%#02x Y=%#02x SP=%#02x P=%#02x\n",
		regs.PC, regs.A, regs.X, regs.Y, regs.SP, regs.Status)
	return nil
}

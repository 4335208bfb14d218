package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/davecgh/go-spew/spew"

	"github.com/pipelined/rtio"
	"github.com/pipelined/rtio/config"
	"github.com/pipelined/rtio/malgo"
	"github.com/pipelined/rtio/portaudio"
)

type devicesCommand struct {
	Backend string `short:"b" long:"backend" choice:"portaudio" choice:"malgo" description:"Backend to list, overrides the configuration"`
}

func (cmd *devicesCommand) Execute([]string) error {
	c, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Backend != "" {
		c.Backend = cmd.Backend
	}
	var devices *rtio.Devices
	switch c.Backend {
	case config.Malgo:
		devices, err = malgo.Enumerate()
	default:
		devices, err = portaudio.Enumerate()
	}
	if err != nil {
		return err
	}
	if opts.Verbose {
		for pair := devices.Oldest(); pair != nil; pair = pair.Next() {
			spew.Dump(pair.Key, pair.Value)
		}
		return nil
	}
	return printDevices(devices)
}

func printDevices(devices *rtio.Devices) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDEFAULT")
	for pair := devices.Oldest(); pair != nil; pair = pair.Next() {
		def := ""
		if pair.Value.Default {
			def = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", pair.Key, pair.Value.Name, def)
	}
	return w.Flush()
}

// command firmware is the TinyGo/ESP32 entry point: it brings up the SD
// card, mounts the FAT volume, and wires the upload, console, touch and
// runtime orchestrator components together before handing control to the
// orchestrator's frame loop. Grounded on cmd/controller/main.go's shape
// (plain log package, fmt.Errorf wrapping, a bare top-level loop).
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/inkframe/firmware/console"
	"github.com/inkframe/firmware/devstate"
	"github.com/inkframe/firmware/drivers"
	"github.com/inkframe/firmware/fat"
	"github.com/inkframe/firmware/hal"
	"github.com/inkframe/firmware/httpupload"
	"github.com/inkframe/firmware/raster"
	"github.com/inkframe/firmware/runtime"
	"github.com/inkframe/firmware/sdspi"
	"github.com/inkframe/firmware/telemetry"
	"github.com/inkframe/firmware/ui"
)

const (
	stateFilePath  = "/system/state.cbor"
	uploadRoot     = "/assets"
	httpListenAddr = ":8080"
	consoleDev     = "/dev/ttyUSB0" // the UART device node; unused by the tinygo console transport

	// uploadToken gates every httpupload route but /health, per §4.K. An
	// empty string disables authentication entirely; this is a compiled-in
	// constant, not a persisted devstate field.
	uploadToken = "replace-with-a-real-token"
)

func main() {
	log.SetFlags(log.Flags() &^ (log.Ldate | log.Ltime))
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "run: %v\n", err)
		os.Exit(2)
	}
}

func run() error {
	log.Println("firmware: starting")

	peripherals, err := openPeripherals()
	if err != nil {
		return fmt.Errorf("open peripherals: %w", err)
	}

	sd := sdspi.New(peripherals.SDSPI, peripherals.SDCS)
	telem := &telemetry.Registry{}
	if err := sd.Init(); err != nil {
		telem.Inc(telemetry.SDInitFailures)
		return fmt.Errorf("sd init: %w", err)
	}
	telem.Inc(telemetry.SDInitAttempts)

	volume, err := fat.Mount(sd)
	if err != nil {
		return fmt.Errorf("mount fat volume: %w", err)
	}

	store, err := devstate.Open(devstate.NewFATBackend(volume, stateFilePath))
	if err != nil {
		return fmt.Errorf("open devstate: %w", err)
	}

	httpSrv := httpupload.NewServer(volume, uploadToken, uploadRoot)
	go func() {
		if err := httpSrv.ListenAndServe(httpListenAddr); err != nil {
			log.Printf("firmware: http upload server stopped: %v", err)
		}
	}()

	events := make(chan runtime.AppEvent, 8)
	panel := raster.NewPanel(peripherals.PanelBus)
	app := ui.NewApp(nil)

	touchIn := drivers.NewTouchController(peripherals.TouchI2C, peripherals.TouchIRQ)
	sensorIn := drivers.NewIMU(peripherals.IMUI2C, peripherals.IMUIRQ1)

	orchestrator := runtime.NewOrchestrator(
		peripherals.Clock, panel, store, telem, app,
		touchIn, sensorIn, peripherals.FrontLight, events,
	)

	dispatcher := &console.Dispatcher{
		FS:        volume,
		Telemetry: telem,
		Store:     store,
		Events:    events,
	}
	port, err := console.OpenPort(consoleDev)
	if err != nil {
		return fmt.Errorf("open console port: %w", err)
	}
	go func() {
		if err := dispatcher.Run(port, func(line string) {
			fmt.Fprintf(port, "%s\r\n", line)
		}); err != nil {
			log.Printf("firmware: console stopped: %v", err)
		}
	}()

	for {
		orchestrator.Frame()
	}
}

// peripheralSet is the set of HAL handles run wires into the rest of the
// firmware; openPeripherals (tinygo build only) populates it.
type peripheralSet struct {
	PanelBus   raster.Bus
	SDSPI      hal.SPIBus
	SDCS       hal.OutPin
	TouchI2C   hal.I2CBus
	TouchIRQ   hal.InPin
	IMUI2C     hal.I2CBus
	IMUIRQ1    hal.InPin
	FrontLight hal.FrontLight
	Clock      hal.Clock
}

// bifrostterm is a line-oriented terminal for the robot arm: it connects the
// dispatcher to stdin/stdout, keeps a position history and hides the status
// polling noise unless asked for it.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bifrost-robot/bifrost/config"
	"github.com/bifrost-robot/bifrost/dispatcher"
	"github.com/bifrost-robot/bifrost/gcode"
	"github.com/bifrost-robot/bifrost/history"
	"github.com/bifrost-robot/bifrost/logconfig"
	"github.com/bifrost-robot/bifrost/router"
	"github.com/bifrost-robot/bifrost/serialport"
)

func main() {
	listPorts := flag.Bool("list", false, "List available serial ports and exit")
	portName := flag.String("port", "", "Serial port to use, empty tries auto-detection")
	baud := flag.Int("baud", 0, "Baud rate, 0 uses the configured default")
	configPath := flag.String("config", "", "Optional YAML configuration file")
	verbose := flag.Bool("verbose", false, "Show position reports and acknowledgements")
	loglevel := flag.Int("loglevel", int(logrus.InfoLevel), "The loglevel to use. Valid values are from 0 to 6. Higher values output more information")
	flag.Parse()

	log := logconfig.GetLogger(logrus.Level(*loglevel))

	if *listPorts {
		ports, err := serialport.ListPorts()
		if err != nil {
			log.WithError(err).Fatal("Listing ports failed")
		}
		for _, name := range ports {
			fmt.Println(name)
		}
		return
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.WithError(err).Fatal("Loading configuration failed")
		}
	}
	if *portName == "" {
		*portName = cfg.Port
	}
	if *baud == 0 {
		*baud = cfg.Baud
	}

	if *portName == "" {
		detected, ok := serialport.FindRobotPort()
		if !ok {
			log.Fatal("No serial port given and auto-detection found none")
		}
		log.Infof("Auto-detected port %s", detected)
		*portName = detected
	}

	store := history.New(cfg.HistoryCapacity)
	if cfg.HistoryFile != "" {
		store.EnablePersistence(cfg.HistoryFile, 10*time.Second)
		if err := store.Load(); err != nil && !os.IsNotExist(err) {
			log.WithError(err).Warn("Loading position history failed")
		}
	}

	routes := router.New(router.Handlers{
		Position: func(axes gcode.Axes) { store.Append(axes) },
	}, router.Options{
		ShowPositionReports:  *verbose,
		ShowAcknowledgements: *verbose,
	}, logconfig.WithPrefix(log, "router"))

	done := make(chan struct{}, 1)

	d := dispatcher.New(dispatcher.Callbacks{
		OnConnected: func() {
			fmt.Printf("* connected to %s\n", *portName)
		},
		OnDisconnected: func() {
			fmt.Println("* disconnected")
		},
		OnDataReceived: func(line string) {
			if routes.Route(line).ShowInConsole {
				fmt.Println(line)
			}
		},
		OnError: func(message string) {
			fmt.Printf("* error: %s\n", message)
			select {
			case done <- struct{}{}:
			default:
			}
		},
	}, dispatcher.OptionsFromConfig(cfg), logconfig.WithPrefix(log, "dispatcher"))

	if err := d.Connect(*portName, *baud); err != nil {
		os.Exit(1)
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	go readInput(d, routes, store, log)

	select {
	case <-signals:
	case <-done:
	}

	d.Disconnect()
	if err := store.Save(); err != nil {
		log.WithError(err).Warn("Saving position history failed")
	}
}

func readInput(d *dispatcher.Dispatcher, routes *router.Router, store *history.Store, log *logrus.Entry) {
	scanner := bufio.NewScanner(os.Stdin)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch strings.ToLower(line) {
		case "home":
			routes.SetHoming(true)
			for _, cmd := range gcode.HomingSequence() {
				if err := d.SendCommand(cmd, false); err != nil {
					log.WithError(err).Error("Queuing homing command failed")
					break
				}
			}
			continue

		case "export":
			name := history.DefaultFilename(time.Now())
			file, err := os.Create(name)
			if err != nil {
				log.WithError(err).Error("Creating export file failed")
				continue
			}
			n, err := store.ExportCSV(file)
			file.Close()
			if err != nil {
				log.WithError(err).Error("Exporting position history failed")
				continue
			}
			fmt.Printf("* exported %d snapshots to %s\n", n, name)
			continue
		}

		routes.MarkManualCommand()
		if strings.HasPrefix(strings.ToUpper(line), "G28") {
			routes.SetHoming(true)
		}

		/* The emergency stop must overtake anything still queued */
		priority := strings.HasPrefix(strings.ToUpper(line), gcode.CmdEmergencyStop)

		if err := d.SendCommand(line, priority); err != nil {
			fmt.Printf("* not connected, dropped %q\n", line)
		}
	}
}

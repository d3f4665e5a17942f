// Command longplayctl controls a running longplay daemon over its
// MPRIS D-Bus interface.
package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	busName         = "org.mpris.MediaPlayer2.longplay"
	objectPath      = "/org/mpris/MediaPlayer2"
	playerInterface = "org.mpris.MediaPlayer2.Player"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: longplayctl <command>

Commands:
  status       show what is playing
  toggle       play or pause
  play         resume playback
  pause        pause playback
  stop         stop playback
  next         skip to the next track
  prev         return to the previous track
  seek <secs>  seek relative, negative to rewind
`)
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	conn, err := dbus.SessionBus()
	if err != nil {
		fatal("connect to session bus: %v", err)
	}
	defer conn.Close()

	player := conn.Object(busName, objectPath)

	switch os.Args[1] {
	case "status":
		printStatus(player)
	case "toggle":
		call(player, "PlayPause")
	case "play":
		call(player, "Play")
	case "pause":
		call(player, "Pause")
	case "stop":
		call(player, "Stop")
	case "next":
		call(player, "Next")
	case "prev", "previous":
		call(player, "Previous")
	case "seek":
		if len(os.Args) < 3 {
			usage()
		}
		secs, err := strconv.ParseFloat(os.Args[2], 64)
		if err != nil {
			fatal("bad offset %q: %v", os.Args[2], err)
		}
		offset := int64(secs * float64(time.Second/time.Microsecond))
		if err := player.Call(playerInterface+".Seek", 0, offset).Err; err != nil {
			fatal("seek: %v", err)
		}
	default:
		usage()
	}
}

func call(player dbus.BusObject, method string) {
	if err := player.Call(playerInterface+"."+method, 0).Err; err != nil {
		fatal("%s: %v (is longplay serve running?)", method, err)
	}
}

func printStatus(player dbus.BusObject) {
	status, err := property(player, "PlaybackStatus")
	if err != nil {
		fatal("read status: %v (is longplay serve running?)", err)
	}
	fmt.Println("status:", status.Value().(string))

	meta, err := property(player, "Metadata")
	if err != nil {
		return
	}
	m, ok := meta.Value().(map[string]dbus.Variant)
	if !ok || len(m) == 0 {
		return
	}

	if v, ok := m["xesam:title"]; ok {
		fmt.Println("title: ", v.Value().(string))
	}
	if v, ok := m["xesam:artist"]; ok {
		if artists, ok := v.Value().([]string); ok && len(artists) > 0 {
			fmt.Println("artist:", artists[0])
		}
	}
	if v, ok := m["xesam:album"]; ok {
		if album := v.Value().(string); album != "" {
			fmt.Println("album: ", album)
		}
	}

	pos, err := property(player, "Position")
	if err != nil {
		return
	}
	if us, ok := pos.Value().(int64); ok {
		d := time.Duration(us) * time.Microsecond
		fmt.Println("at:    ", d.Round(time.Second))
	}
}

func property(player dbus.BusObject, name string) (dbus.Variant, error) {
	return player.GetProperty(playerInterface + "." + name)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "longplayctl: "+format+"\n", args...)
	os.Exit(1)
}

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

const testYaml = `
version: bench-cfg-v1
server:
  host: 0.0.0.0
  port: 9090
tcan:
  interface: socketcan
  channel: can0
  device_id: 0x3
mcan:
  interface: serial
  channel: /dev/ttyUSB0
  baud: 500000
busses:
- name: aux
  interface: virtual
  channel: vcan0
- name: body
  interface: socketcan
  channel: can2
- name: aux
  interface: socketcan
  channel: can3
`

func TestDeserialize(t *testing.T) {
	Convey("a full bench-cfg-v1 document", t, func() {
		cfg, err := Deserialize([]byte(testYaml))
		So(err, ShouldBeNil)

		Convey("server settings are read", func() {
			So(cfg.Host, ShouldEqual, "0.0.0.0")
			So(cfg.Port, ShouldEqual, 9090)
			So(cfg.Addr(), ShouldEqual, "0.0.0.0:9090")
		})

		Convey("tcan and mcan are read", func() {
			id := uint32(3)
			So(cfg.TCAN, ShouldResemble, &Bus{Interface: "socketcan", Channel: "can0", DeviceID: &id})
			So(cfg.MCAN, ShouldResemble, &Bus{Interface: "serial", Channel: "/dev/ttyUSB0", Baud: 500000})
		})

		Convey("a duplicate bus name overwrites the earlier entry in place", func() {
			So(len(cfg.Busses), ShouldEqual, 2)
			So(cfg.Busses[0].Name, ShouldEqual, "aux")
			aux, ok := cfg.Bus("aux")
			So(ok, ShouldBeTrue)
			So(aux.String(), ShouldEqual, "socketcan:can3")
			_, ok = cfg.Bus("missing")
			So(ok, ShouldBeFalse)
		})
	})

	Convey("a minimal document uses defaults", t, func() {
		cfg, err := Deserialize([]byte("version: bench-cfg-v1\n"))
		So(err, ShouldBeNil)
		So(cfg.Host, ShouldEqual, DefaultHost)
		So(cfg.Port, ShouldEqual, DefaultPort)
		So(cfg.TCAN, ShouldBeNil)
		So(cfg.Busses, ShouldBeEmpty)
	})
}

func TestDeserializeErrors(t *testing.T) {
	Convey("validation errors", t, func() {
		Convey("missing version", func() {
			_, err := Deserialize([]byte("server:\n  port: 1\n"))
			So(errors.Is(err, ErrMissingKey), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "does not have a version")
		})
		Convey("unsupported version", func() {
			_, err := Deserialize([]byte("version: bench-cfg-v9\n"))
			So(errors.Is(err, ErrUnsupportedVersion), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "bench-cfg-v9")
		})
		Convey("tcan without channel", func() {
			_, err := Deserialize([]byte("version: bench-cfg-v1\ntcan:\n  interface: socketcan\n"))
			So(errors.Is(err, ErrMissingKey), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "'channel'")
		})
		Convey("mcan without interface", func() {
			_, err := Deserialize([]byte("version: bench-cfg-v1\nmcan:\n  channel: can1\n"))
			So(errors.Is(err, ErrMissingKey), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "'interface'")
		})
		Convey("bus without name", func() {
			_, err := Deserialize([]byte("version: bench-cfg-v1\nbusses:\n- interface: virtual\n  channel: x\n"))
			So(errors.Is(err, ErrMissingKey), ShouldBeTrue)
		})
		Convey("malformed yaml", func() {
			_, err := Deserialize([]byte("version: [\n"))
			So(err, ShouldNotBeNil)
		})
	})
}

func TestSerializeRoundTrip(t *testing.T) {
	Convey("a built configuration survives serialization", t, func() {
		cfg := NewBuilder().
			WithHost("bench.local").
			WithPort(8181).
			WithTCAN("serial", "/dev/ttyACM0").
			WithDeviceID(5).
			WithBus("aux", "virtual", "v0").
			Build()
		data, err := cfg.Format("yaml")
		So(err, ShouldBeNil)
		So(string(data), ShouldStartWith, "version: bench-cfg-v1\n")

		back, err := Deserialize(data)
		So(err, ShouldBeNil)
		So(back, ShouldResemble, cfg)

		Convey("other formats are rejected", func() {
			_, err := cfg.Format("toml")
			So(errors.Is(err, ErrUnsupportedFormat), ShouldBeTrue)
		})
	})
}

func TestDeviceIDZeroIsKept(t *testing.T) {
	Convey("an explicit device_id of 0", t, func() {
		cfg, err := Deserialize([]byte("version: bench-cfg-v1\ntcan:\n  interface: virtual\n  channel: v0\n  device_id: 0\n"))
		So(err, ShouldBeNil)
		So(cfg.TCAN.DeviceID, ShouldNotBeNil)
		So(*cfg.TCAN.DeviceID, ShouldEqual, 0)

		Convey("survives serialization", func() {
			data, err := Serialize(cfg)
			So(err, ShouldBeNil)
			So(string(data), ShouldContainSubstring, "device_id: 0")
			back, err := Deserialize(data)
			So(err, ShouldBeNil)
			So(back, ShouldResemble, cfg)
		})
	})

	Convey("an absent device_id stays unset", t, func() {
		cfg, err := Deserialize([]byte("version: bench-cfg-v1\ntcan:\n  interface: virtual\n  channel: v0\n"))
		So(err, ShouldBeNil)
		So(cfg.TCAN.DeviceID, ShouldBeNil)
	})

	Convey("the builder keeps WithDeviceID(0)", t, func() {
		cfg := NewBuilder().WithTCAN("virtual", "v0").WithDeviceID(0).Build()
		So(cfg.TCAN.DeviceID, ShouldNotBeNil)
		So(*cfg.TCAN.DeviceID, ShouldEqual, 0)
	})
}

func TestExampleProfiles(t *testing.T) {
	Convey("example profiles", t, func() {
		def, err := Example("default")
		So(err, ShouldBeNil)
		So(def.TCAN, ShouldBeNil)
		So(def.Addr(), ShouldEqual, "localhost:8080")

		teleo, err := Example("teleo")
		So(err, ShouldBeNil)
		So(teleo.TCAN.String(), ShouldEqual, "socketcan:can0")
		So(teleo.MCAN.String(), ShouldEqual, "socketcan:can1")

		_, err = Example("nope")
		So(errors.Is(err, ErrUnknownProfile), ShouldBeTrue)
	})
}

func TestLoad(t *testing.T) {
	Convey("loading from disk", t, func() {
		path := filepath.Join(t.TempDir(), "bench.yaml")
		So(os.WriteFile(path, []byte(testYaml), 0o644), ShouldBeNil)
		cfg, err := Load(path)
		So(err, ShouldBeNil)
		So(cfg.TCAN.Channel, ShouldEqual, "can0")

		_, err = Load(filepath.Join(t.TempDir(), "absent.yaml"))
		So(os.IsNotExist(err), ShouldBeTrue)
	})
}

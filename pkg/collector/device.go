package collector

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/shirou/gopsutil/v3/host"

	"github.com/pario-ai/tokenboard/pkg/config"
	"github.com/pario-ai/tokenboard/pkg/models"
)

const deviceIDLength = 32

// HostInfo is the machine facts device identity is derived from.
type HostInfo struct {
	Hostname string
	Platform string
	MACs     []string
}

// HostProbe returns facts about the current machine.
type HostProbe func() (HostInfo, error)

// LocalHost reads hostname and platform from gopsutil and MAC addresses
// from the non-loopback interfaces.
func LocalHost() (HostInfo, error) {
	var info HostInfo
	if hi, err := host.Info(); err == nil {
		info.Hostname = hi.Hostname
		info.Platform = strings.TrimSpace(hi.Platform + " " + hi.PlatformVersion)
	}
	if info.Hostname == "" {
		name, err := os.Hostname()
		if err != nil {
			return HostInfo{}, fmt.Errorf("hostname: %w", err)
		}
		info.Hostname = name
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return HostInfo{}, fmt.Errorf("network interfaces: %w", err)
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || len(iface.HardwareAddr) == 0 {
			continue
		}
		info.MACs = append(info.MACs, iface.HardwareAddr.String())
	}
	return info, nil
}

// DeriveDeviceID hashes the hostname with the sorted, de-duplicated MAC
// addresses. The same machine always yields the same id.
func DeriveDeviceID(info HostInfo) string {
	macs := lo.Map(info.MACs, func(m string, _ int) string { return strings.ToLower(m) })
	macs = lo.Uniq(lo.Filter(macs, func(m string, _ int) bool {
		return m != "" && m != "00:00:00:00:00:00"
	}))
	sort.Strings(macs)

	sum := sha256.Sum256([]byte(info.Hostname + "|" + strings.Join(macs, ",")))
	return hex.EncodeToString(sum[:])[:deviceIDLength]
}

// ResolveDevice returns the identity to report. Configured values win;
// anything missing is derived from probe.
func ResolveDevice(cfg config.DeviceConfig, probe HostProbe) (models.DeviceInfo, error) {
	dev := models.DeviceInfo{DeviceID: cfg.ID, DeviceName: cfg.Name}
	if cfg.DisplayName != "" {
		name := cfg.DisplayName
		dev.DisplayName = &name
	}
	if dev.DeviceID != "" && dev.DeviceName != "" {
		return dev, nil
	}

	if probe == nil {
		probe = LocalHost
	}
	info, err := probe()
	if err != nil {
		return models.DeviceInfo{}, fmt.Errorf("resolve device: %w", err)
	}
	if dev.DeviceID == "" {
		dev.DeviceID = DeriveDeviceID(info)
	}
	if dev.DeviceName == "" {
		dev.DeviceName = info.Hostname
	}
	return dev, nil
}

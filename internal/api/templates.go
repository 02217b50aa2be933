package api

import (
	"encoding/xml"
	"net/http"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/nerrad567/loxhue-core/internal/mapping"
	"github.com/nerrad567/loxhue-core/internal/status"
)

// Template versions understood by the controller configuration tool.
const (
	templateTypeOutputs = "3"
	templateTypeInputs  = "1"
	templateMinVersion  = "16011106"
)

type templateInfo struct {
	TemplateType string `xml:"templateType,attr"`
	MinVersion   string `xml:"minVersion,attr"`
}

type virtualOut struct {
	XMLName        xml.Name        `xml:"VirtualOut"`
	Title          string          `xml:"Title,attr"`
	Address        string          `xml:"Address,attr"`
	CmdInit        string          `xml:"CmdInit,attr"`
	CloseAfterSend string          `xml:"CloseAfterSend,attr"`
	CmdSep         string          `xml:"CmdSep,attr"`
	Info           templateInfo    `xml:"Info"`
	Commands       []virtualOutCmd `xml:"VirtualOutCmd"`
}

type virtualOutCmd struct {
	Title   string `xml:"Title,attr"`
	Comment string `xml:"Comment,attr"`
	CmdOn   string `xml:"CmdOn,attr"`
	Analog  bool   `xml:"Analog,attr"`
}

type virtualIn struct {
	XMLName  xml.Name       `xml:"VirtualInUdp"`
	Title    string         `xml:"Title,attr"`
	Port     string         `xml:"Port,attr"`
	Info     templateInfo   `xml:"Info"`
	Commands []virtualInCmd `xml:"VirtualInUdpCmd"`
}

type virtualInCmd struct {
	Title  string `xml:"Title,attr"`
	Check  string `xml:"Check,attr"`
	Analog bool   `xml:"Analog,attr"`
	DefVal string `xml:"DefVal,attr,omitempty"`
	MinVal string `xml:"MinVal,attr,omitempty"`
	MaxVal string `xml:"MaxVal,attr,omitempty"`
	Unit   string `xml:"Unit,attr,omitempty"`
}

// sensorInput describes one analog value a mapped sensor reports.
type sensorInput struct {
	label, key, min, max, unit string
}

var sensorInputs = []sensorInput{
	{"Motion", status.KeyMotion, "0", "1", "<v>"},
	{"Contact", status.KeyContact, "0", "1", "<v>"},
	{"Lux", status.KeyLux, "0", "65000", "<v> lx"},
	{"Temp", status.KeyTemperature, "-50", "100", "<v.1> °C"},
	{"Battery", status.KeyBattery, "0", "100", "<v> %"},
}

// handleDownloadOutputs returns a virtual output template with one command
// per mapped light and group. ?names=a,b limits the template to those names.
func (s *Server) handleDownloadOutputs(w http.ResponseWriter, r *http.Request) {
	doc := virtualOut{
		Title:          "LoxHue Lights",
		Address:        "http://" + r.Host,
		CloseAfterSend: "true",
		CmdSep:         ";",
		Info:           templateInfo{TemplateType: templateTypeOutputs, MinVersion: templateMinVersion},
	}

	for _, e := range filterNames(s.bridge.Mapping(), r.URL.Query().Get("names")) {
		if !e.Type.Commandable() {
			continue
		}
		doc.Commands = append(doc.Commands, virtualOutCmd{
			Title:   titleCase(e.Name) + " (Hue)",
			Comment: e.DisplayName,
			CmdOn:   "/" + e.Name + "/<v>",
			Analog:  true,
		})
	}

	s.writeTemplate(w, "lox_outputs.xml", doc)
}

// handleDownloadInputs returns a UDP virtual input template matching the
// datagrams sent for mapped sensors and buttons.
func (s *Server) handleDownloadInputs(w http.ResponseWriter, r *http.Request) {
	ns := s.cfg.Loxone.Namespace
	doc := virtualIn{
		Title: "LoxHue Sensors",
		Port:  strconv.Itoa(s.cfg.Loxone.UDPPort),
		Info:  templateInfo{TemplateType: templateTypeInputs, MinVersion: templateMinVersion},
	}

	for _, e := range filterNames(s.bridge.Mapping(), r.URL.Query().Get("names")) {
		title := titleCase(e.Name)
		prefix := ns + "." + e.Name + "."

		switch e.Type {
		case mapping.KindSensor:
			for _, in := range sensorInputs {
				doc.Commands = append(doc.Commands, virtualInCmd{
					Title:  title + " " + in.label,
					Check:  prefix + in.key + ` \v`,
					Analog: true,
					DefVal: "0",
					MinVal: in.min,
					MaxVal: in.max,
					Unit:   in.unit,
				})
			}
		case mapping.KindButton:
			doc.Commands = append(doc.Commands, virtualInCmd{
				Title: title + " Event",
				Check: prefix + status.KeyButton + ` \v`,
			})
			if isDial(e) {
				doc.Commands = append(doc.Commands,
					virtualInCmd{Title: title + " Rotary CW", Check: prefix + status.KeyRotary + " cw"},
					virtualInCmd{Title: title + " Rotary CCW", Check: prefix + status.KeyRotary + " ccw"},
				)
			}
		}
	}

	s.writeTemplate(w, "lox_inputs.xml", doc)
}

func (s *Server) writeTemplate(w http.ResponseWriter, filename string, doc any) {
	body, err := xml.MarshalIndent(doc, "", "\t")
	if err != nil {
		writeInternalError(w, "failed to build template")
		return
	}

	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	w.Write([]byte(`<?xml version="1.0" encoding="utf-8"?>` + "\n"))
	//nolint:errcheck // Best-effort write to response; connection may be closed
	w.Write(body)
}

// filterNames keeps entries named in the comma separated list. An empty
// list keeps everything.
func filterNames(entries []mapping.Entry, names string) []mapping.Entry {
	if names == "" {
		return entries
	}
	want := make(map[string]bool)
	for _, n := range strings.Split(names, ",") {
		want[strings.ToLower(strings.TrimSpace(n))] = true
	}

	var out []mapping.Entry
	for _, e := range entries {
		if want[e.Name] {
			out = append(out, e)
		}
	}
	return out
}

// isDial reports whether a button entry was mapped from a rotary dial.
func isDial(e mapping.Entry) bool {
	name := strings.ToLower(e.DisplayName)
	return strings.Contains(name, "dial") || strings.Contains(name, "rotary")
}

func titleCase(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

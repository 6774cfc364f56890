package data

import (
	"bytes"
	"net/url"

	"github.com/gr-butler/fieldstation/record"
)

// Water is one reading from the water quality and level probes.
type Water struct {
	Timestamp       uint32  `json:"ts" url:"ts"`
	Temperature     float32 `json:"temp" url:"temp"`
	DissolvedOxygen float32 `json:"dissolved_oxygen" url:"dissolved_oxygen"`
	Conductivity    float32 `json:"conductivity" url:"conductivity"`
	PH              float32 `json:"ph" url:"ph"`
	ORP             float32 `json:"orp" url:"orp"`
	Pressure        float32 `json:"pressure" url:"pressure"`
	DepthCm         float32 `json:"depth_cm" url:"depth_cm"`
	DepthFt         float32 `json:"depth_ft" url:"depth_ft"`
	TSS             float32 `json:"tss" url:"tss"`
	WaterLevel      float32 `json:"water_level" url:"water_level"`
}

func (Water) Size() int { return 4 + 10*4 }

func (d Water) Encode(b []byte) {
	w := record.NewWriter(b)
	w.U32(d.Timestamp)
	w.F32(d.Temperature)
	w.F32(d.DissolvedOxygen)
	w.F32(d.Conductivity)
	w.F32(d.PH)
	w.F32(d.ORP)
	w.F32(d.Pressure)
	w.F32(d.DepthCm)
	w.F32(d.DepthFt)
	w.F32(d.TSS)
	w.F32(d.WaterLevel)
}

func (Water) Decode(b []byte) Water {
	r := record.NewReader(b)
	return Water{
		Timestamp:       r.U32(),
		Temperature:     r.F32(),
		DissolvedOxygen: r.F32(),
		Conductivity:    r.F32(),
		PH:              r.F32(),
		ORP:             r.F32(),
		Pressure:        r.F32(),
		DepthCm:         r.F32(),
		DepthFt:         r.F32(),
		TSS:             r.F32(),
		WaterLevel:      r.F32(),
	}
}

// Weather is one reading from the all in one weather station.
type Weather struct {
	Timestamp     uint32  `json:"ts" url:"ts"`
	Solar         int16   `json:"solar" url:"solar"`
	Precipitation float32 `json:"precipitation" url:"precipitation"`
	Strikes       int16   `json:"strikes" url:"strikes"`
	WindSpeed     float32 `json:"wind_speed" url:"wind_speed"`
	WindDirection int16   `json:"wind_dir" url:"wind_dir"`
	Gust          float32 `json:"gust" url:"gust"`
	AirTemp       float32 `json:"air_temp" url:"air_temp"`
	VaporPressure float32 `json:"vapor_pressure" url:"vapor_pressure"`
	AtmPressure   float32 `json:"atm_pressure" url:"atm_pressure"`
	RelHumidity   float32 `json:"rel_humidity" url:"rel_humidity"`
	DewPoint      float32 `json:"dew_point" url:"dew_point"`
}

func (Weather) Size() int { return 4 + 3*2 + 8*4 }

func (d Weather) Encode(b []byte) {
	w := record.NewWriter(b)
	w.U32(d.Timestamp)
	w.I16(d.Solar)
	w.F32(d.Precipitation)
	w.I16(d.Strikes)
	w.F32(d.WindSpeed)
	w.I16(d.WindDirection)
	w.F32(d.Gust)
	w.F32(d.AirTemp)
	w.F32(d.VaporPressure)
	w.F32(d.AtmPressure)
	w.F32(d.RelHumidity)
	w.F32(d.DewPoint)
}

func (Weather) Decode(b []byte) Weather {
	r := record.NewReader(b)
	return Weather{
		Timestamp:     r.U32(),
		Solar:         r.I16(),
		Precipitation: r.F32(),
		Strikes:       r.I16(),
		WindSpeed:     r.F32(),
		WindDirection: r.I16(),
		Gust:          r.F32(),
		AirTemp:       r.F32(),
		VaporPressure: r.F32(),
		AtmPressure:   r.F32(),
		RelHumidity:   r.F32(),
		DewPoint:      r.F32(),
	}
}

type Soil struct {
	Timestamp    uint32  `json:"ts" url:"ts"`
	VWC          float32 `json:"vwc" url:"vwc"`
	Temperature  float32 `json:"temp" url:"temp"`
	Conductivity float32 `json:"conductivity" url:"conductivity"`
}

func (Soil) Size() int { return 16 }

func (d Soil) Encode(b []byte) {
	w := record.NewWriter(b)
	w.U32(d.Timestamp)
	w.F32(d.VWC)
	w.F32(d.Temperature)
	w.F32(d.Conductivity)
}

func (Soil) Decode(b []byte) Soil {
	r := record.NewReader(b)
	return Soil{
		Timestamp:    r.U32(),
		VWC:          r.F32(),
		Temperature:  r.F32(),
		Conductivity: r.F32(),
	}
}

type Lightning struct {
	Timestamp uint32 `json:"ts" url:"ts"`
	Distance  uint16 `json:"distance" url:"distance"`
	Energy    uint32 `json:"energy" url:"energy"`
}

func (Lightning) Size() int { return 10 }

func (d Lightning) Encode(b []byte) {
	w := record.NewWriter(b)
	w.U32(d.Timestamp)
	w.U16(d.Distance)
	w.U32(d.Energy)
}

func (Lightning) Decode(b []byte) Lightning {
	r := record.NewReader(b)
	return Lightning{
		Timestamp: r.U32(),
		Distance:  r.U16(),
		Energy:    r.U32(),
	}
}

// FineOffset is an aggregate of the packets sniffed from a FineOffset
// weather station during one listen window.
type FineOffset struct {
	Timestamp      uint32  `json:"ts" url:"ts"`
	Packets        uint16  `json:"packets" url:"packets"`
	Wakeups        uint32  `json:"wakeups" url:"wakeups"`
	Temperature    float32 `json:"temp" url:"temp"`
	Humidity       uint8   `json:"hum" url:"hum"`
	Rain           float32 `json:"rain" url:"rain"`
	RainHourly     float32 `json:"rain_hourly" url:"rain_hourly"`
	WindDirection  uint16  `json:"wind_dir" url:"wind_dir"`
	WindSpeed      float32 `json:"wind_speed" url:"wind_speed"`
	WindGust       float32 `json:"wind_gust" url:"wind_gust"`
	UV             uint32  `json:"uv" url:"uv"`
	UVIndex        uint32  `json:"uvi" url:"uvi"`
	Light          uint32  `json:"light" url:"light"`
	SolarRadiation uint32  `json:"solar_radiation" url:"solar_radiation"`
}

func (FineOffset) Size() int { return 4 + 2 + 4 + 4 + 1 + 4 + 4 + 2 + 4 + 4 + 4*4 }

func (d FineOffset) Encode(b []byte) {
	w := record.NewWriter(b)
	w.U32(d.Timestamp)
	w.U16(d.Packets)
	w.U32(d.Wakeups)
	w.F32(d.Temperature)
	w.U8(d.Humidity)
	w.F32(d.Rain)
	w.F32(d.RainHourly)
	w.U16(d.WindDirection)
	w.F32(d.WindSpeed)
	w.F32(d.WindGust)
	w.U32(d.UV)
	w.U32(d.UVIndex)
	w.U32(d.Light)
	w.U32(d.SolarRadiation)
}

func (FineOffset) Decode(b []byte) FineOffset {
	r := record.NewReader(b)
	return FineOffset{
		Timestamp:      r.U32(),
		Packets:        r.U16(),
		Wakeups:        r.U32(),
		Temperature:    r.F32(),
		Humidity:       r.U8(),
		Rain:           r.F32(),
		RainHourly:     r.F32(),
		WindDirection:  r.U16(),
		WindSpeed:      r.F32(),
		WindGust:       r.F32(),
		UV:             r.U32(),
		UVIndex:        r.U32(),
		Light:          r.U32(),
		SolarRadiation: r.U32(),
	}
}

// SDI12ResponseSize is the space kept for one raw SDI-12 response line.
const SDI12ResponseSize = 64

// SDI12Response is a NUL padded response line.
type SDI12Response [SDI12ResponseSize]byte

func (r SDI12Response) String() string {
	if i := bytes.IndexByte(r[:], 0); i >= 0 {
		return string(r[:i])
	}
	return string(r[:])
}

func (r SDI12Response) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// EncodeValues lets go-querystring send the line as text.
func (r SDI12Response) EncodeValues(key string, v *url.Values) error {
	v.Set(key, r.String())
	return nil
}

// SDI12Log keeps a raw sensor response for debugging the bus.
type SDI12Log struct {
	Timestamp uint64        `json:"ts" url:"ts"`
	Response  SDI12Response `json:"sdi12" url:"sdi12"`
}

func NewSDI12Log(ts uint64, response string) SDI12Log {
	l := SDI12Log{Timestamp: ts}
	copy(l.Response[:], response)
	return l
}

func (SDI12Log) Size() int { return 8 + SDI12ResponseSize }

func (d SDI12Log) Encode(b []byte) {
	w := record.NewWriter(b)
	w.U64(d.Timestamp)
	w.Bytes(d.Response[:], SDI12ResponseSize)
}

func (SDI12Log) Decode(b []byte) SDI12Log {
	r := record.NewReader(b)
	d := SDI12Log{Timestamp: r.U64()}
	copy(d.Response[:], r.Bytes(SDI12ResponseSize))
	return d
}

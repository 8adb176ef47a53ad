package plant

import "math"

// Gravitational acceleration, m/s^2.
const gravity = 9.81

// Tank models a liquid tank with inlet and outlet valves.
//
//	dh/dt       = (Q_in - Q_out) / A
//	Q_in        = Cv_in * valve_in * sqrt(dP_in)
//	Q_out       = Cv_out * valve_out * sqrt(2 * g * h)
//	d(valve)/dt = (target - valve) / tau_valve
//
// State fields: h, valve_in_position, valve_out_position.
// Control inputs: valve_in_target, valve_out_target.
// Signals: level_sensor, valve_in_position, valve_out_position,
// flow_in, flow_out.
type Tank struct {
	id        string
	area      float64
	cvIn      float64
	cvOut     float64
	dPIn      float64
	tauValve  float64
	maxHeight float64
}

func init() {
	Register("tank", NewTank)
}

func NewTank(id string, params Params) Component {
	return &Tank{
		id:        id,
		area:      params.Get("area", 10.0),
		cvIn:      params.Get("Cv_in", 0.05),
		cvOut:     params.Get("Cv_out", 0.05),
		dPIn:      params.Get("dP_in", 2e5),
		tauValve:  params.Get("tau_valve", 2.0),
		maxHeight: params.Get("max_height", 10.0),
	}
}

func (tk *Tank) InitialState(initial map[string]float64) State {
	s := State{
		"h":                  5.0,
		"valve_in_position":  0.5,
		"valve_out_position": 0.5,
	}
	if v, ok := initial["level"]; ok {
		s["h"] = v
	}
	for k := range s {
		if v, ok := initial[k]; ok {
			s[k] = v
		}
	}
	return s
}

func (tk *Tank) flows(h, valveIn, valveOut float64) (qIn, qOut float64) {
	qIn = tk.cvIn * valveIn * math.Sqrt(tk.dPIn)
	qOut = tk.cvOut * valveOut * math.Sqrt(2*gravity*math.Max(h, 0))
	return qIn, qOut
}

func (tk *Tank) Derivatives(t float64, full State, control map[string]float64) State {
	h := full[tk.id+".h"]
	valveIn := full[tk.id+".valve_in_position"]
	valveOut := full[tk.id+".valve_out_position"]

	valveInTarget := valveIn
	if v, ok := control[tk.id+".valve_in_target"]; ok {
		valveInTarget = v
	}
	valveOutTarget := valveOut
	if v, ok := control[tk.id+".valve_out_target"]; ok {
		valveOutTarget = v
	}

	qIn, qOut := tk.flows(h, valveIn, valveOut)
	dhdt := (qIn - qOut) / tk.area

	// Physical bounds: an empty tank cannot drain, a full one cannot fill.
	if h <= 0 && dhdt < 0 {
		dhdt = 0
	}
	if h >= tk.maxHeight && dhdt > 0 {
		dhdt = 0
	}

	return State{
		"h":                  dhdt,
		"valve_in_position":  (valveInTarget - valveIn) / tk.tauValve,
		"valve_out_position": (valveOutTarget - valveOut) / tk.tauValve,
	}
}

func (tk *Tank) Signals(full State) State {
	h := full[tk.id+".h"]
	valveIn := full[tk.id+".valve_in_position"]
	valveOut := full[tk.id+".valve_out_position"]
	qIn, qOut := tk.flows(h, valveIn, valveOut)

	return State{
		"level_sensor":       h,
		"valve_in_position":  valveIn,
		"valve_out_position": valveOut,
		"flow_in":            qIn,
		"flow_out":           qOut,
	}
}

func (tk *Tank) SignalNames() []string {
	return []string{"level_sensor", "valve_in_position", "valve_out_position", "flow_in", "flow_out"}
}

package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/streetlight-predictor/internal/domain"
)

type predictFlags struct {
	features    string
	at          string
	temp        float64
	humidity    float64
	cloudCover  float64
	visibility  float64
	windSpeed   float64
	aqi         float64
	pedestrians int
	vehicles    int
	ambient     float64
	motion      int
}

func newPredictCmd(g *globalFlags) *cobra.Command {
	p := &predictFlags{}
	def := domain.DefaultCurrentWeather()

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Train, then run one prediction through the adjustment cascade",
		Long: "predict trains a model from --csv and scores either a raw 17-value feature\n" +
			"vector (--features) or a current-conditions snapshot. Context rules apply\n" +
			"only for the context flags given: --aqi/--pedestrians/--vehicles enable the\n" +
			"external rules, --ambient/--motion enable the sensor rules.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := p.vector(cmd)
			if err != nil {
				return err
			}
			model, err := trainModel(cmd.Context(), g)
			if err != nil {
				return err
			}
			base, err := model.Predict(v)
			if err != nil {
				return err
			}
			result, trace := domain.AdjustDebug(base, p.external(cmd), p.sensor(cmd))

			out := cmd.OutOrStdout()
			for _, w := range domain.Validate(v) {
				fmt.Fprintln(out, "warning:", w)
			}

			st := newTable(g.markdown)
			st.AppendHeader(table.Row{"Rule", "Detail", "Before", "After", "Fired"})
			st.AppendRow(table.Row{"base", "", "", num(trace.BasePrediction), ""})
			for _, s := range trace.Steps {
				st.AppendRow(table.Row{s.Rule, s.Detail, num(s.Before), num(s.After), s.Fired})
			}
			rightAlign(st, 3, 4)
			render(out, st, g.markdown)

			fmt.Fprintf(out, "Intensity:  %.2f\n", result.RecommendedIntensity)
			fmt.Fprintf(out, "Lights on:  %t\n", result.LightsShouldBeOn)
			fmt.Fprintf(out, "Confidence: %.2f\n", result.Confidence)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&p.features, "features", "", "comma-separated raw feature vector (17 values)")
	f.StringVar(&p.at, "at", "", "observation time, RFC 3339 (default now)")
	f.Float64Var(&p.temp, "temp", def.Temperature, "temperature (C)")
	f.Float64Var(&p.humidity, "humidity", def.Humidity, "relative humidity (%)")
	f.Float64Var(&p.cloudCover, "cloudcover", def.CloudCover, "cloud cover (%)")
	f.Float64Var(&p.visibility, "visibility", def.Visibility, "visibility (km)")
	f.Float64Var(&p.windSpeed, "windspeed", def.WindSpeed, "wind speed (km/h)")
	f.Float64Var(&p.aqi, "aqi", domain.DefaultAQI, "air quality index")
	f.IntVar(&p.pedestrians, "pedestrians", 0, "pedestrian count")
	f.IntVar(&p.vehicles, "vehicles", 0, "vehicle count")
	f.Float64Var(&p.ambient, "ambient", domain.DefaultAmbientLight, "ambient light sensor reading (0-100)")
	f.IntVar(&p.motion, "motion", 0, "motion sensor (0 or 1)")
	cmd.MarkFlagsMutuallyExclusive("features", "temp")
	cmd.MarkFlagsMutuallyExclusive("features", "at")
	return cmd
}

func (p *predictFlags) vector(cmd *cobra.Command) (domain.FeatureVector, error) {
	if cmd.Flags().Changed("features") {
		return parseFeatures(p.features)
	}

	now := time.Now()
	if p.at != "" {
		t, err := time.Parse(time.RFC3339, p.at)
		if err != nil {
			return domain.FeatureVector{}, fmt.Errorf("parse --at: %w", err)
		}
		now = t
	}
	return domain.LiveFeatures(domain.CurrentWeather{
		Temperature: p.temp,
		Humidity:    p.humidity,
		CloudCover:  p.cloudCover,
		Visibility:  p.visibility,
		WindSpeed:   p.windSpeed,
	}, now), nil
}

// external returns nil unless an external context flag was given.
func (p *predictFlags) external(cmd *cobra.Command) *domain.ExternalContext {
	f := cmd.Flags()
	if !f.Changed("aqi") && !f.Changed("pedestrians") && !f.Changed("vehicles") {
		return nil
	}
	ext := &domain.ExternalContext{}
	if f.Changed("aqi") {
		ext.AirQuality = &domain.AirQuality{AQI: p.aqi}
	}
	if f.Changed("pedestrians") || f.Changed("vehicles") {
		ext.Traffic = &domain.TrafficData{PedestrianCount: p.pedestrians, VehicleCount: p.vehicles}
	}
	return ext
}

// sensor returns nil unless a sensor flag was given.
func (p *predictFlags) sensor(cmd *cobra.Command) *domain.SensorReading {
	f := cmd.Flags()
	if !f.Changed("ambient") && !f.Changed("motion") {
		return nil
	}
	r := &domain.SensorReading{}
	if f.Changed("ambient") {
		r.AmbientLight = domain.Float(p.ambient)
	}
	if f.Changed("motion") {
		r.Motion = domain.Int(p.motion)
	}
	return r
}

var errEmptyFeatures = errors.New("empty feature list")

func parseFeatures(raw string) (domain.FeatureVector, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.FeatureVector{}, errEmptyFeatures
	}
	parts := strings.Split(raw, ",")
	values := make([]float64, len(parts))
	for i, s := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return domain.FeatureVector{}, fmt.Errorf("feature %d: %w", i, err)
		}
		values[i] = v
	}
	return domain.FeatureVectorFrom(values)
}

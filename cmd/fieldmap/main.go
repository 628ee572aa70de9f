package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/mastercactapus/fieldmap/config"
	"github.com/mastercactapus/fieldmap/datalog"
	"github.com/mastercactapus/fieldmap/fieldmesh"
)

// setFlags collects repeated -set key=value overrides.
type setFlags []string

func (s *setFlags) String() string { return strings.Join(*s, " ") }
func (s *setFlags) Set(v string) error {
	if !strings.Contains(v, "=") {
		return fmt.Errorf("expected key=value, got %q", v)
	}
	*s = append(*s, v)
	return nil
}

func (s setFlags) apply(p *config.Profile) error {
	for _, kv := range s {
		key, val, _ := strings.Cut(kv, "=")
		if err := p.Set(strings.TrimSpace(key), val); err != nil {
			return err
		}
	}
	return nil
}

const usage = `Usage: fieldmap [flags] <command> [args]

Commands:
  config               print the selected profile (-save writes -set overrides back)
  generate             write the full and boundary path files
  home                 home every stage
  run-edges            home, then visit the boundary path
  run                  home, then visit the full path
  summary [file]       print statistics of a data log
  interp z r x y       interpolate the data log at (x, y) in the z/rotation plane
  serve                start the HTTP control server

Flags:
`

func main() {
	log.SetFlags(log.Lshortfile)

	cfgPath := flag.String("c", "config.json", "Configuration file (.json, .yaml or .yml).")
	profile := flag.String("p", "test_rectangular", "Profile to use from the configuration file.")
	var sets setFlags
	flag.Var(&sets, "set", "Override a profile setting as key=value. May be repeated.")
	save := flag.Bool("save", false, "With config: write the -set overrides back to the configuration file.")
	dbPath := flag.String("db", "", "SQLite database to record runs in. Disabled if empty.")
	bridge := flag.String("bridge", "", "Websocket URL of an SPJS server to reach the probe through, e.g. ws://bridge:8989/ws.")
	addr := flag.String("addr", ":9092", "Address to bind the server to.")
	dir := flag.String("dir", ".", "Directory for path files and data logs.")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	file, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("ERROR: load config: %+v", err)
	}
	prof, err := file.Profile(*profile)
	if err != nil {
		log.Fatal("ERROR: ", err)
	}
	if err := sets.apply(&prof); err != nil {
		log.Fatal("ERROR: ", err)
	}

	a, err := newApp(*cfgPath, *profile, prof, *dir, *dbPath, *bridge)
	if err != nil {
		log.Fatalf("ERROR: %+v", err)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	args := flag.Args()[1:]
	switch cmd := flag.Arg(0); cmd {
	case "config":
		err = printProfile(&prof)
		if err == nil && *save {
			file[*profile] = prof
			err = config.Save(*cfgPath, file)
		}
	case "generate":
		_, err = a.generate()
	case "home":
		err = a.home(ctx)
	case "run-edges":
		err = a.homeAndScan(ctx, true)
	case "run":
		err = a.homeAndScan(ctx, false)
	case "summary":
		name := a.path(prof.DataFilename)
		if len(args) > 0 {
			name = args[0]
		}
		err = summary(name)
	case "interp":
		err = interp(a.path(prof.DataFilename), args)
	case "serve":
		api := newAPI(a)
		defer api.Close()
		log.Println("Listening on", *addr)
		err = http.ListenAndServe(*addr, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "*")
			log.Printf("%s %s - %s", req.Method, req.URL.Path, req.RemoteAddr)
			api.ServeHTTP(w, req)
		}))
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Printf("ERROR: %s: %+v", flag.Arg(0), err)
		a.Close()
		os.Exit(1)
	}
}

func printProfile(p *config.Profile) error {
	for _, s := range config.Schema {
		v, err := p.Get(s.Key)
		if err != nil {
			return err
		}
		fmt.Printf("%-26s %-8s %s\n", s.Key, s.Kind, v)
	}
	for _, msg := range p.CheckTravel() {
		log.Println("WARN:", msg)
	}
	return nil
}

func summary(name string) error {
	recs, err := datalog.ReadFile(name)
	if err != nil {
		return err
	}
	_, err = datalog.Summarize(recs).WriteTo(os.Stdout)
	return err
}

func interp(name string, args []string) error {
	if len(args) != 4 {
		return fmt.Errorf("interp needs z, rotation, x and y; got %d values", len(args))
	}
	var v [4]float64
	for i, s := range args {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("argument %d: %w", i+1, err)
		}
		v[i] = f
	}

	recs, err := datalog.ReadFile(name)
	if err != nil {
		return err
	}
	m, err := fieldmesh.New(fieldmesh.Plane(recs, v[0], v[1]))
	if err != nil {
		return fmt.Errorf("plane z=%g r=%g: %w", v[0], v[1], err)
	}
	val, ok := m.Value(v[2], v[3])
	if !ok {
		return fmt.Errorf("(%g, %g) is outside the sampled area", v[2], v[3])
	}
	fmt.Println(strconv.FormatFloat(val, 'f', -1, 64))
	return nil
}

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/distributedlearning/go-task-client/client"
	"github.com/distributedlearning/go-task-client/config"
	"github.com/distributedlearning/go-task-client/poller"
	"github.com/distributedlearning/go-task-client/task"
)

var (
	// path to the configuration file
	path = flag.String("config", "", "")

	// server address and api prefix
	host    = flag.String("host", "", "")
	apiPath = flag.String("api-path", "", "")

	// user credentials exchanged for a bearer token
	username = flag.String("username", "", "")
	password = flag.String("password", "", "")

	// collaboration the task is submitted to
	collaboration = flag.Int("collaboration", 0, "")

	// task payload details
	name  = flag.String("name", "", "")
	image = flag.String("image", "", "")

	// polling behavior
	interval = flag.Duration("interval", 5*time.Second, "")
	timeout  = flag.Duration("timeout", 0, "")

	// pretty print the task results
	pretty = flag.Bool("pretty", false, "")

	// runs with verbose output if true
	verbose = flag.Bool("verbose", false, "")

	// displays the help / usage if true
	help = flag.Bool("help", false, "")
)

func main() {

	// parse the input parameters
	flag.BoolVar(help, "h", false, "")
	flag.BoolVar(verbose, "v", false, "")
	flag.Usage = usage
	flag.Parse()

	if *help {
		flag.Usage()
		os.Exit(0)
	}

	// set the default log level
	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	conf, err := loadConfig()
	if err != nil {
		logrus.Fatal(err)
	}

	results, err := run(context.Background(), conf)
	if err != nil {
		logrus.Fatal(err)
	}

	if *pretty {
		// re-encode each result as json with indentation.
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		for _, result := range results {
			var temp any
			json.Unmarshal(result, &temp)
			enc.Encode(temp)
		}
		return
	}

	// write the raw results to stdout
	for _, result := range results {
		os.Stdout.Write(result)
		fmt.Fprintln(os.Stdout, "")
	}
}

// run submits the configured task and waits for its results.
func run(ctx context.Context, conf *config.Config) ([]json.RawMessage, error) {
	log := logrus.WithField("run_id", uuid.New().String())

	httpClient := client.New(client.Config{
		Host:     conf.Host,
		APIPath:  conf.APIPath,
		Username: conf.Username,
		Password: conf.Password,
	})

	session, err := httpClient.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	log.Info("authenticated with the task server")

	// the master container receives the server coordinates in
	// its input so it can schedule node sub-tasks itself.
	t := &task.Task{
		Name:            conf.Name,
		Image:           conf.Image,
		CollaborationID: conf.CollaborationID,
		Input: task.Input{
			Role:            "master",
			Host:            conf.Host,
			APIPath:         conf.APIPath,
			CollaborationID: conf.CollaborationID,
		},
	}

	created, err := session.CreateTask(ctx, t)
	if err != nil {
		return nil, err
	}
	log.WithField("task_id", created.ID).Info("task submitted")

	p := poller.New(session)
	p.Interval = *interval
	p.Deadline = *timeout
	return p.WaitForResults(ctx, created.ID)
}

// loadConfig reads the configuration file, if any, and applies
// the command line overrides.
func loadConfig() (*config.Config, error) {
	conf := new(config.Config)
	if *path != "" {
		var err error
		conf, err = config.Load(*path)
		if err != nil {
			return nil, err
		}
	}
	if *host != "" {
		conf.Host = *host
	}
	if *apiPath != "" {
		conf.APIPath = *apiPath
	}
	if *username != "" {
		conf.Username = *username
	}
	if *password != "" {
		conf.Password = *password
	}
	if *collaboration != 0 {
		conf.CollaborationID = *collaboration
	}
	if *name != "" {
		conf.Name = *name
	}
	if *image != "" {
		conf.Image = *image
	}
	if conf.APIPath == "" {
		conf.APIPath = "/api"
	}
	if conf.Name == "" {
		conf.Name = "remote procedure call"
	}
	return conf, conf.Validate()
}

var usage = func() {
	println(`Usage: task-client [OPTION]...

      --config         path to the yaml configuration file
      --host           task server address (e.g. https://server.example.com)
      --api-path       api prefix appended to the host (default /api)
      --username       username used to obtain the bearer token
      --password       password used to obtain the bearer token
      --collaboration  collaboration id the task is submitted to
      --name           task name
      --image          container image that executes the task
      --interval       period between task status checks (default 5s)
      --timeout        maximum time to wait for results, 0 waits forever
      --pretty         pretty print the task results
  -v, --verbose        run with verbose output
  -h, --help           display this help and exit

Examples:
  task-client --config path/to/config.yml
`)
}

package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cskr/pubsub"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/audsync/audsync/events"
	"github.com/audsync/audsync/relay"
	"github.com/audsync/audsync/webserver"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the audio relay server",
	Long: `Run the audio relay server

Endpoints connect to the relay over TCP. Every audio packet a ready
client sends is forwarded to all other ready clients. With --web-addr
set, a status monitor serves the relay state as JSON and pushes it to
websocket clients.
`,
	Run: runRelayServer,
}

func init() {
	RootCmd.AddCommand(serverCmd)
	serverCmd.Flags().StringP("address", "a", ":8080", "listen address (host:port)")
	serverCmd.Flags().StringP("web-addr", "w", "", "status monitor listen address, empty disables the monitor")
	serverCmd.Flags().Int("send-queue-size", 64, "per client outbound queue capacity in messages")
	serverCmd.Flags().Duration("write-timeout", 2*time.Second, "deadline for a single message write")
}

func runRelayServer(cmd *cobra.Command, args []string) {

	// Try to read config file
	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	} else {
		if !strings.Contains(err.Error(), "Not Found in") {
			fmt.Fprintf(os.Stderr, "Error parsing config file %v: %v\n",
				viper.ConfigFileUsed(), err)
			os.Exit(1)
		}
	}

	// bind the pflags to viper settings
	viper.BindPFlag("relay.address", cmd.Flags().Lookup("address"))
	viper.BindPFlag("relay.web-addr", cmd.Flags().Lookup("web-addr"))
	viper.BindPFlag("relay.send-queue-size", cmd.Flags().Lookup("send-queue-size"))
	viper.BindPFlag("relay.write-timeout", cmd.Flags().Lookup("write-timeout"))

	address := viper.GetString("relay.address")
	webAddr := viper.GetString("relay.web-addr")
	sendQueueSize := viper.GetInt("relay.send-queue-size")
	writeTimeout := viper.GetDuration("relay.write-timeout")

	bus := pubsub.New(100)
	go events.WatchSystemEvents(bus)
	shutdownCh := bus.Sub(events.OsExit)

	srv, err := relay.NewServer(
		relay.Address(address),
		relay.SendQueueSize(sendQueueSize),
		relay.WriteTimeout(writeTimeout),
		relay.EventBus(bus),
	)
	if err != nil {
		logrus.Fatal(err)
	}
	if err := srv.Start(); err != nil {
		logrus.Fatal(err)
	}

	var web *webserver.WebServer
	if webAddr != "" {
		web, err = webserver.NewWebServer(srv,
			webserver.Address(webAddr),
			webserver.EventBus(bus),
		)
		if err != nil {
			srv.Stop()
			logrus.Fatal(err)
		}
		if err := web.Start(); err != nil {
			srv.Stop()
			logrus.Fatal(err)
		}
	}

	<-shutdownCh

	if web != nil {
		web.Stop()
	}
	srv.Stop()
}

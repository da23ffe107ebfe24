package main

import (
	"flag"
	"log"
	"net"
	"net/http"
	"os"

	"medialib/internal/nmjsim"
)

func main() {
	var (
		telnetAddr   = flag.String("telnet", "127.0.0.1:2323", "Address for the emulated root shell")
		httpAddr     = flag.String("http", "127.0.0.1:8008", "Address for the metadata_database control endpoint")
		database     = flag.String("database", "/share/Video/nmj_database/media.db", "First line of /tmp/source; empty means NMJ is not running")
		source       = flag.String("source", "local_hard_disk", "Second line of /tmp/source, e.g. NETWORK_SHARE/Video")
		netshareFile = flag.String("netshare", "", "File served as /tmp/netshare")
		returnValue  = flag.String("return", "0", "returnValue answered to scanner_start")
	)
	flag.Parse()

	dev := &nmjsim.Device{
		Database:    *database,
		Source:      *source,
		ReturnValue: *returnValue,
	}
	if *netshareFile != "" {
		data, err := os.ReadFile(*netshareFile)
		if err != nil {
			log.Fatalf("read netshare: %v", err)
		}
		dev.Netshare = string(data)
	}

	ln, err := net.Listen("tcp", *telnetAddr)
	if err != nil {
		log.Fatalf("listen telnet: %v", err)
	}
	go func() {
		log.Printf("[nmjsim] shell on %s", ln.Addr())
		if err := dev.ServeTerminal(ln); err != nil {
			log.Fatalf("telnet: %v", err)
		}
	}()

	log.Printf("[nmjsim] control endpoint on %s", *httpAddr)
	if err := http.ListenAndServe(*httpAddr, dev.Handler()); err != nil {
		log.Fatalf("http: %v", err)
	}
}

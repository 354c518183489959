package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/sfsm565826960/PostmanLite/internal/config"
	"github.com/sfsm565826960/PostmanLite/internal/credstore"
	"github.com/sfsm565826960/PostmanLite/internal/history"
	"github.com/sfsm565826960/PostmanLite/internal/httpclient"
	"github.com/sfsm565826960/PostmanLite/internal/nettrace"
	"github.com/sfsm565826960/PostmanLite/internal/reqspec"
	"github.com/sfsm565826960/PostmanLite/internal/signing"
	"github.com/sfsm565826960/PostmanLite/internal/snapshot"
	"github.com/sfsm565826960/PostmanLite/internal/telemetry"
	"github.com/sfsm565826960/PostmanLite/internal/util"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// stringList collects repeatable flags in order.
type stringList []string

func (s *stringList) String() string {
	return strings.Join(*s, ", ")
}

func (s *stringList) Set(value string) error {
	*s = append(*s, value)
	return nil
}

func main() {
	settings, _, err := config.LoadSettings()
	if err != nil {
		log.Printf("settings load error: %v", err)
		settings = config.DefaultSettings()
	}

	var (
		requestFile   string
		urlFlag       string
		method        string
		headers       stringList
		params        stringList
		jsonBody      string
		textBody      string
		bodyFile      string
		formParts     stringList
		urlencParts   stringList
		stream        bool
		trace         bool
		timeout       time.Duration
		insecure      bool
		follow        bool
		proxyURL      string
		appID         string
		secretKey     string
		credKey       string
		credFiles     stringList
		showHeaders   bool
		listHistory   bool
		historyURL    string
		deleteHistory string
		showVersion   bool

		traceOTEndpoint string
		traceOTInsecure bool
		traceOTService  string
	)

	telemetryCfg := telemetry.ConfigFromEnv(os.Getenv)
	if settings.Telemetry.Endpoint != "" && telemetryCfg.Endpoint == "" {
		telemetryCfg.Endpoint = settings.Telemetry.Endpoint
		telemetryCfg.Insecure = settings.Telemetry.Insecure
		if settings.Telemetry.ServiceName != "" {
			telemetryCfg.ServiceName = settings.Telemetry.ServiceName
		}
	}
	traceOTEndpoint = telemetryCfg.Endpoint
	traceOTInsecure = telemetryCfg.Insecure
	traceOTService = telemetryCfg.ServiceName

	defaults := settings.RequestOptions()

	flag.StringVar(&requestFile, "request", "", "Path to a YAML request file")
	flag.StringVar(&urlFlag, "url", "", "Request URL (overrides the request file)")
	flag.StringVar(&method, "method", "", "HTTP method (default GET)")
	flag.Var(&headers, "header", "Request header key=value (repeatable)")
	flag.Var(&params, "param", "Query parameter key=value (repeatable)")
	flag.StringVar(&jsonBody, "json", "", "JSON body text")
	flag.StringVar(&textBody, "text", "", "Plain text body")
	flag.StringVar(&bodyFile, "body-file", "", "Path to a raw body file")
	flag.Var(&formParts, "form", "Multipart part key=value or key=@file (repeatable)")
	flag.Var(&urlencParts, "urlenc", "URL-encoded body pair key=value (repeatable)")
	flag.BoolVar(&stream, "stream", settings.Streaming, "Stream the response chunk by chunk")
	flag.BoolVar(&trace, "trace", false, "Print a network phase timing breakdown")
	flag.DurationVar(&timeout, "timeout", defaults.Timeout, "Request timeout")
	flag.BoolVar(&insecure, "insecure", defaults.InsecureSkipVerify, "Skip TLS certificate verification")
	flag.BoolVar(&follow, "follow", defaults.FollowRedirects, "Follow redirects")
	flag.StringVar(&proxyURL, "proxy", defaults.ProxyURL, "HTTP proxy URL")
	flag.StringVar(&appID, "app-id", settings.Auth.AppID, "Signing app id")
	flag.StringVar(&secretKey, "secret-key", settings.Auth.SecretKey, "Signing secret key")
	flag.StringVar(&credKey, "cred-key", settings.Auth.CredentialKey, "Credential name for the auth value")
	flag.Var(&credFiles, "creds", "Path to a name=value credential file (repeatable)")
	flag.BoolVar(&showHeaders, "show-signed", false, "Print the signed headers used for the send")
	flag.BoolVar(&listHistory, "history", false, "List recorded executions and exit")
	flag.StringVar(&historyURL, "history-url", "", "Filter -history output by exact URL")
	flag.StringVar(&deleteHistory, "history-delete", "", "Delete the history entry with this id and exit")
	flag.BoolVar(&showVersion, "version", false, "Show postmanlite version")
	flag.StringVar(
		&traceOTEndpoint,
		"trace-otel-endpoint",
		traceOTEndpoint,
		"OTLP gRPC endpoint for trace export (empty disables tracing)",
	)
	flag.BoolVar(
		&traceOTInsecure,
		"trace-otel-insecure",
		traceOTInsecure,
		"Use an insecure connection to the OTLP endpoint",
	)
	flag.StringVar(
		&traceOTService,
		"trace-otel-service",
		traceOTService,
		"Service name reported on exported spans",
	)
	flag.Parse()

	telemetryCfg.Endpoint = strings.TrimSpace(traceOTEndpoint)
	telemetryCfg.Insecure = traceOTInsecure
	telemetryCfg.ServiceName = strings.TrimSpace(traceOTService)
	telemetryCfg.Version = version

	if showVersion {
		fmt.Printf("postmanlite %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
		os.Exit(0)
	}

	if listHistory || deleteHistory != "" {
		store, err := history.Open(settings.History.Path, settings.History.MaxEntries)
		if err != nil {
			log.Fatalf("open history: %v", err)
		}
		defer store.Close()

		if deleteHistory != "" {
			existed, err := store.Delete(deleteHistory)
			if err != nil {
				log.Fatalf("delete history entry: %v", err)
			}
			if !existed {
				fmt.Printf("no history entry %s\n", deleteHistory)
				os.Exit(1)
			}
			fmt.Printf("deleted %s\n", deleteHistory)
			os.Exit(0)
		}

		entries, err := store.ByURL(historyURL)
		if err != nil {
			log.Fatalf("list history: %v", err)
		}
		printHistory(entries)
		os.Exit(0)
	}

	spec, err := buildSpec(requestFile, urlFlag, method, headers, params,
		jsonBody, textBody, bodyFile, formParts, urlencParts, stream)
	if err != nil {
		log.Fatalf("%v", err)
	}

	creds := credstore.New()
	for _, path := range util.DedupeNonEmptyStrings(credFiles) {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("read credentials %s: %v", path, err)
		}
		if err := creds.LoadData(data); err != nil {
			log.Fatalf("parse credentials %s: %v", path, err)
		}
	}

	auth := settings.AuthConfig()
	auth.AppID = appID
	auth.SecretKey = secretKey
	auth.CredentialKey = credKey
	if auth.AppID != "" && auth.SecretKey != "" {
		auth.Enabled = true
	}

	client := httpclient.NewClient()

	provider, err := telemetry.New(telemetryCfg)
	if err != nil {
		if telemetryCfg.Enabled() {
			log.Printf("telemetry init error: %v", err)
		}
	} else {
		client.SetTelemetry(provider)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if shutdownErr := provider.Shutdown(ctx); shutdownErr != nil {
				log.Printf("telemetry shutdown: %v", shutdownErr)
			}
		}()
	}

	opts := httpclient.Options{
		Timeout:            timeout,
		FollowRedirects:    follow,
		InsecureSkipVerify: insecure,
		ProxyURL:           proxyURL,
		Trace:              trace,
	}

	executor := httpclient.NewExecutor(client, signing.NewSigner(creds))

	handle, err := executor.Send(context.Background(), spec, settings.GlobalHeaderList(), auth, opts)
	if err != nil {
		log.Fatalf("send: %v", err)
	}

	if showHeaders {
		if signed := executor.LastSignedHeaders(); signed != nil {
			for _, pair := range signed.Pairs() {
				fmt.Printf("%s: %s\n", pair[0], pair[1])
			}
		}
	}

	final := printSnapshots(handle, spec.StreamingEnabled)

	if trace {
		printTimeline(handle.Timeline())
	}

	store, err := history.Open(settings.History.Path, settings.History.MaxEntries)
	if err != nil {
		log.Printf("open history: %v", err)
	} else {
		defer store.Close()
		recordHistory(store, spec, final, handle.Session().Err())
	}

	if err := handle.Session().Err(); err != nil {
		os.Exit(1)
	}
}

func buildSpec(
	requestFile, urlFlag, method string,
	headers, params stringList,
	jsonBody, textBody, bodyFile string,
	formParts, urlencParts stringList,
	stream bool,
) (*reqspec.RequestSpec, error) {
	var spec *reqspec.RequestSpec
	if requestFile != "" {
		loaded, err := reqspec.LoadFile(nil, requestFile)
		if err != nil {
			return nil, err
		}
		spec = loaded
	}

	if urlFlag != "" {
		if spec == nil {
			m := method
			if m == "" {
				m = http.MethodGet
			}
			spec = reqspec.New(m, urlFlag)
		} else {
			spec.URL = urlFlag
		}
	}
	if spec == nil {
		return nil, fmt.Errorf("either -request or -url is required")
	}
	if method != "" {
		spec.Method = strings.ToUpper(strings.TrimSpace(method))
	}

	for _, raw := range headers {
		key, value, err := splitPair(raw, "-header")
		if err != nil {
			return nil, err
		}
		spec.Headers = append(spec.Headers, reqspec.NewEntry(key, value))
	}
	for _, raw := range params {
		key, value, err := splitPair(raw, "-param")
		if err != nil {
			return nil, err
		}
		spec.Params = append(spec.Params, reqspec.NewEntry(key, value))
	}

	if err := applyBodyFlags(spec, jsonBody, textBody, bodyFile, formParts, urlencParts); err != nil {
		return nil, err
	}

	spec.StreamingEnabled = stream
	return spec, nil
}

func applyBodyFlags(
	spec *reqspec.RequestSpec,
	jsonBody, textBody, bodyFile string,
	formParts, urlencParts stringList,
) error {
	selected := 0
	for _, set := range []bool{
		jsonBody != "", textBody != "", bodyFile != "",
		len(formParts) > 0, len(urlencParts) > 0,
	} {
		if set {
			selected++
		}
	}
	if selected > 1 {
		return fmt.Errorf("choose at most one of -json, -text, -body-file, -form, -urlenc")
	}

	switch {
	case jsonBody != "":
		spec.Body.JSONText = jsonBody
		spec.SwitchBodyType(reqspec.BodyJSON)
	case textBody != "":
		spec.Body.Text = textBody
		spec.SwitchBodyType(reqspec.BodyText)
	case bodyFile != "":
		data, err := os.ReadFile(bodyFile)
		if err != nil {
			return fmt.Errorf("read body file: %w", err)
		}
		spec.Body.RawFile = reqspec.FileBlob{Name: bodyFile, Data: data}
		spec.SwitchBodyType(reqspec.BodyRawFile)
	case len(formParts) > 0:
		parts := make(reqspec.FormPartList, 0, len(formParts))
		for _, raw := range formParts {
			key, value, err := splitPair(raw, "-form")
			if err != nil {
				return err
			}
			if strings.HasPrefix(value, "@") {
				path := value[1:]
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read form file: %w", err)
				}
				parts = append(parts, reqspec.NewFilePart(key, reqspec.FileBlob{Name: path, Data: data}))
			} else {
				parts = append(parts, reqspec.NewTextPart(key, value))
			}
		}
		spec.Body.FormParts = parts
		spec.SwitchBodyType(reqspec.BodyMultipartForm)
	case len(urlencParts) > 0:
		list := make(reqspec.KeyValueList, 0, len(urlencParts))
		for _, raw := range urlencParts {
			key, value, err := splitPair(raw, "-urlenc")
			if err != nil {
				return err
			}
			list = append(list, reqspec.NewEntry(key, value))
		}
		spec.Body.URLEncoded = list
		spec.SwitchBodyType(reqspec.BodyURLEncodedForm)
	}
	return nil
}

func splitPair(raw, flagName string) (string, string, error) {
	key, value, found := strings.Cut(raw, "=")
	key = strings.TrimSpace(key)
	if !found || key == "" {
		return "", "", fmt.Errorf("%s expects key=value, got %q", flagName, raw)
	}
	return key, value, nil
}

// printSnapshots writes the exchange's progression to stdout and returns the
// final snapshot. Streaming prints each chunk's delta as it arrives; a
// buffered exchange prints the one terminal snapshot.
func printSnapshots(handle *httpclient.Handle, streaming bool) *snapshot.Snapshot {
	listener := handle.Session().Subscribe()
	defer listener.Cancel()

	headersPrinted := false
	printed := 0
	var last *snapshot.Snapshot

	consume := func(snap *snapshot.Snapshot) {
		last = snap
		if snap.IsError {
			return
		}
		if !headersPrinted && snap.Status > 0 {
			fmt.Printf("%d %s\n", snap.Status, snap.StatusText)
			keys := make([]string, 0, len(snap.Headers))
			for key := range snap.Headers {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				for _, value := range snap.Headers[key] {
					fmt.Printf("%s: %s\n", key, value)
				}
			}
			fmt.Println()
			headersPrinted = true
		}
		if streaming {
			if len(snap.Body) > printed {
				fmt.Print(snap.Body[printed:])
				printed = len(snap.Body)
			}
			return
		}
	}

	for _, snap := range listener.Replay {
		consume(snap)
	}
	for snap := range listener.C {
		consume(snap)
	}

	if last == nil {
		last = handle.Last()
	}
	if last != nil {
		if last.IsError {
			fmt.Fprintf(os.Stderr, "request failed: %s\n", last.ErrorMessage)
		} else if !streaming {
			fmt.Println(last.Body)
		}
		if streaming {
			fmt.Println()
		}
		fmt.Fprintf(os.Stderr, "%d bytes in %dms\n", last.SizeBytes, last.ElapsedMs())
	}
	return last
}

func recordHistory(store *history.Store, spec *reqspec.RequestSpec, final *snapshot.Snapshot, runErr error) {
	entry := history.Entry{
		Method:   spec.Method,
		URL:      spec.URL,
		Streamed: spec.StreamingEnabled,
	}

	if data, err := spec.MarshalPersisted(); err == nil {
		entry.RequestJSON = string(data)
	}

	if final != nil {
		entry.StatusCode = final.Status
		entry.Status = final.StatusText
		entry.Duration = final.Elapsed
		entry.SizeBytes = final.SizeBytes
		entry.ContentType = final.ContentType
		entry.BodySnippet = history.Snippet(final.Body)
		if final.IsError {
			entry.Error = final.ErrorMessage
		}
	}
	if runErr != nil && entry.Error == "" {
		entry.Error = runErr.Error()
	}

	if err := store.Append(entry); err != nil {
		log.Printf("record history: %v", err)
	}
}

func printTimeline(tl *nettrace.Timeline) {
	if tl == nil {
		fmt.Fprintln(os.Stderr, "no trace recorded")
		return
	}
	fmt.Fprintln(os.Stderr, "timing:")
	for _, phase := range tl.Phases {
		line := fmt.Sprintf("  %-16s %s", phase.Kind, phase.Duration.Round(time.Microsecond))
		if phase.Meta.Addr != "" {
			line += "  " + phase.Meta.Addr
		}
		if phase.Meta.Reused {
			line += "  (reused)"
		}
		if phase.Err != "" {
			line += "  error: " + phase.Err
		}
		fmt.Fprintln(os.Stderr, line)
	}
	fmt.Fprintf(os.Stderr, "  %-16s %s\n", "total", tl.Duration.Round(time.Microsecond))
}

func printHistory(entries []history.Entry) {
	if len(entries) == 0 {
		fmt.Println("history is empty")
		return
	}
	for _, entry := range entries {
		status := entry.Status
		if status == "" && entry.Error != "" {
			status = "error"
		}
		fmt.Printf("%s  %s  %-7s %s  %s (%d bytes, %s)\n",
			entry.ID,
			entry.ExecutedAt.Format(time.RFC3339),
			entry.Method,
			entry.URL,
			status,
			entry.SizeBytes,
			entry.Duration.Round(time.Millisecond),
		)
		if entry.Error != "" {
			fmt.Printf("    error: %s\n", entry.Error)
		}
	}
}

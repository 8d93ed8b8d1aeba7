package stakeserver

import (
	"container/list"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/stakesuite/nft-stakepool-server/service"
	"github.com/stakesuite/nft-stakepool-server/stakejson"
	"github.com/stakesuite/nft-stakepool-server/utils"
	"github.com/gorilla/websocket"
)

const (
	// websocketSendBufferSize is the number of replies the send channel can
	// hold before a sender blocks.  Notifications do not count against it
	// since they are queued separately by notificationQueueHandler.
	websocketSendBufferSize = 50
)

// timeZeroVal clears a connection read deadline.
var timeZeroVal time.Time

// Notification control requests
type notificationRegisterClient wsClient
type notificationUnregisterClient wsClient

type notificationPoolsConfigured service.PoolsConfiguredData
type notificationPoolLiquidated service.PoolLiquidatedData

func (s semaphore) acquire() { s <- struct{}{} }
func (s semaphore) release() { <-s }

// wsNotificationManager tracks the connected websocket clients and fans pool
// events out to them.  The staking service hands it the details whenever
// pools are reconfigured or a liquidation flag is toggled, and it broadcasts
// the corresponding notification to every registered client.
type wsNotificationManager struct {
	// server is the RPC server the notification manager is associated with.
	server *StakeServer

	// queueNotification queues a notification for handling.
	queueNotification chan interface{}

	// notificationMsgs feeds notificationHandler with queued notifications
	// and client register/unregister requests.
	notificationMsgs chan interface{}

	// Access channel for current number of connected clients.
	numClients chan int

	// Shutdown handling
	wg   sync.WaitGroup
	quit chan struct{}
}

// wsResponse houses a message to send to a connected websocket client as
// well as a channel to reply on when the message is sent.
type wsResponse struct {
	msg      []byte
	doneChan chan bool
}

type semaphore chan struct{}

func makeSemaphore(n int) semaphore {
	return make(chan struct{}, n)
}

// newWsNotificationManager returns a new notification manager ready for use.
// See wsNotificationManager for more details.
func newWsNotificationManager(server *StakeServer) *wsNotificationManager {
	return &wsNotificationManager{
		server:            server,
		queueNotification: make(chan interface{}),
		notificationMsgs:  make(chan interface{}),
		numClients:        make(chan int),
		quit:              make(chan struct{}),
	}
}

// Start starts the goroutines required for the manager to queue and process
// websocket client notifications.
func (m *wsNotificationManager) Start() {
	m.wg.Add(2)
	go m.queueHandler()
	go m.notificationHandler()
}

// NumClients returns the number of clients actively being served.
func (m *wsNotificationManager) NumClients() (n int) {
	select {
	case n = <-m.numClients:
	case <-m.quit: // Use default n (0) if server has shut down.
	}
	return
}

// newWebsocketClient returns a websocket client for the given connection.
// Clients arriving on the /ws endpoint with valid HTTP basic auth credentials
// come in pre-authenticated; the rest must authenticate as their first
// websocket command before anything else is accepted.
func newWebsocketClient(server *StakeServer, conn *websocket.Conn,
	remoteAddr string, authenticated bool, isAdmin bool) (*wsClient, error) {

	sessionID, err := utils.RandomUint64()
	if err != nil {
		return nil, err
	}

	client := &wsClient{
		conn:              conn,
		addr:              remoteAddr,
		authenticated:     authenticated,
		isAdmin:           isAdmin,
		sessionID:         sessionID,
		server:            server,
		serviceRequestSem: makeSemaphore(server.cfg.RPCMaxConcurrentReqs),
		ntfnChan:          make(chan []byte, 1), // nonblocking sync
		sendChan:          make(chan wsResponse, websocketSendBufferSize),
		quit:              make(chan struct{}),
	}
	return client, nil
}

// wsClient is one websocket connection to the staking server.  Three
// goroutines serve it: inHandler reads and dispatches staking commands,
// outHandler owns the actual connection writes, and notificationQueueHandler
// sits between the notification manager and outHandler so that a slow client
// can never block pool-configured or pool-liquidated broadcasts.  Command
// replies take the bounded sendChan instead, which caps how many requests a
// client can have outstanding.
type wsClient struct {
	sync.Mutex

	// server is the RPC server that is servicing the client.
	server *StakeServer

	// conn is the underlying websocket connection.
	conn *websocket.Conn

	// disconnected indicated whether or not the websocket client is
	// disconnected.
	disconnected bool

	// addr is the remote address of the client.
	addr string

	// authenticated specifies whether a client has been authenticated
	// and therefore is allowed to communicated over the websocket.
	authenticated bool

	// isAdmin specifies whether a client may change the state of the server;
	// false means its access is only to the limited set of RPC calls.
	isAdmin bool

	// sessionID is a random ID generated for each client when connected.
	// A change to the session ID indicates that the client reconnected.
	sessionID uint64

	// Networking infrastructure.
	serviceRequestSem semaphore
	ntfnChan          chan []byte
	sendChan          chan wsResponse
	quit              chan struct{}
	wg                sync.WaitGroup
}

func (c *wsClient) RemoteAddr() string {
	return c.addr
}

func (c *wsClient) QuitChan() chan struct{} {
	return c.quit
}

// AddClient adds the passed websocket client to the notification manager.
func (m *wsNotificationManager) AddClient(wsc *wsClient) {
	m.queueNotification <- (*notificationRegisterClient)(wsc)
}

// RemoveClient removes the passed websocket client and all notifications
// registered for it.
func (m *wsNotificationManager) RemoveClient(wsc *wsClient) {
	select {
	case m.queueNotification <- (*notificationUnregisterClient)(wsc):
	case <-m.quit:
	}
}

// NotifyPoolsConfigured broadcasts a pool_configured notification to the
// connected websocket clients.
func (m *wsNotificationManager) NotifyPoolsConfigured(data *service.PoolsConfiguredData) {
	select {
	case m.queueNotification <- (*notificationPoolsConfigured)(data):
	case <-m.quit:
	}
}

// NotifyPoolLiquidated broadcasts a pool_liquidated notification to the
// connected websocket clients.
func (m *wsNotificationManager) NotifyPoolLiquidated(data *service.PoolLiquidatedData) {
	select {
	case m.queueNotification <- (*notificationPoolLiquidated)(data):
	case <-m.quit:
	}
}

func (m *wsNotificationManager) notifyPoolsConfigured(clients map[chan struct{}]*wsClient, data *service.PoolsConfiguredData) {
	ntfn := stakejson.NewPoolConfiguredNtfn(data.AssetRefs, data.PoolIDs)
	marshalledJSON, err := stakejson.MarshalCmd(nil, stakejson.PoolConfiguredNtfnMethod, ntfn)
	if err != nil {
		log.Errorf("Failed to marshal pool configured notification: %v", err)
		return
	}
	for _, wsc := range clients {
		wsc.QueueNotification(marshalledJSON)
	}
}

func (m *wsNotificationManager) notifyPoolLiquidated(clients map[chan struct{}]*wsClient, data *service.PoolLiquidatedData) {
	ntfn := stakejson.NewPoolLiquidatedNtfn(data.AssetRef, data.Flag)
	marshalledJSON, err := stakejson.MarshalCmd(nil, stakejson.PoolLiquidatedNtfnMethod, ntfn)
	if err != nil {
		log.Errorf("Failed to marshal pool liquidated notification: %v", err)
		return
	}
	for _, wsc := range clients {
		wsc.QueueNotification(marshalledJSON)
	}
}

// inHandler handles all incoming messages for the websocket connection.  It
// must be run as a goroutine.
func (c *wsClient) inHandler() {
	defer utils.MyRecover()
out:
	for {
		// Break out of the loop once the quit channel has been closed.
		// Use a non-blocking select here so we fall through otherwise.
		select {
		case <-c.quit:
			break out
		default:
		}

		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			// Log the error if it's not due to disconnecting.
			if err != io.EOF {
				log.Errorf("Websocket receive error from "+
					"%s: %v", c.addr, err)
			}
			break out
		}

		var request stakejson.Request
		err = json.Unmarshal(msg, &request)
		if err != nil {
			if !c.authenticated {
				break out
			}

			jsonErr := &stakejson.RPCError{
				Code:    stakejson.ErrRPCParse.Code,
				Message: "Failed to parse request: " + err.Error(),
			}
			reply, err := createMarshalledReply(nil, nil, jsonErr)
			if err != nil {
				log.Errorf("Failed to marshal parse failure "+
					"reply: %v", err)
				continue
			}
			c.SendMessage(reply, nil)
			continue
		}

		if request.ID == nil {
			if !c.authenticated {
				break out
			}
			continue
		}

		cmd := parseCmd(&request)
		if cmd.err != nil {
			if !c.authenticated {
				break out
			}

			reply, err := createMarshalledReply(cmd.id, nil, cmd.err)
			if err != nil {
				log.Errorf("Failed to marshal parse failure "+
					"reply: %v", err)
				continue
			}
			c.SendMessage(reply, nil)
			continue
		}
		log.Debugf("Received command <%s> from %s", cmd.method, c.addr)

		// Check auth.  An unauthenticated client gets exactly one shot:
		// its first request must be a valid authenticate command or the
		// connection is dropped.  Re-authenticating an authenticated
		// client drops it too.
		switch authCmd, ok := cmd.cmd.(*stakejson.AuthenticateCmd); {
		case c.authenticated && ok:
			log.Warnf("Websocket client %s is already authenticated",
				c.addr)
			break out
		case !c.authenticated && !ok:
			log.Warnf("Unauthenticated websocket message " +
				"received")
			break out
		case !c.authenticated:
			// Check credentials.
			login := authCmd.Username + ":" + authCmd.Passphrase
			auth := "Basic " + base64.StdEncoding.EncodeToString([]byte(login))
			authSha := sha256.Sum256([]byte(auth))

			cmp := subtle.ConstantTimeCompare(authSha[:], c.server.authsha[:])
			limitcmp := subtle.ConstantTimeCompare(authSha[:], c.server.limitauthsha[:])
			if cmp != 1 && limitcmp != 1 {
				log.Warnf("Auth failure.")
				break out
			}
			c.authenticated = true
			c.isAdmin = cmp == 1

			// Marshal and send response.
			reply, err := createMarshalledReply(cmd.id, nil, nil)
			if err != nil {
				log.Errorf("Failed to marshal authenticate reply: "+
					"%v", err.Error())
				continue
			}
			c.SendMessage(reply, nil)
			continue
		}

		// Check if the client is using limited RPC credentials and
		// error when not authorized to call this RPC.
		if !c.isAdmin {
			if _, ok := rpcLimited[request.Method]; !ok {
				jsonErr := &stakejson.RPCError{
					Code:    stakejson.ErrRPCInvalidParams.Code,
					Message: "limited user not authorized for this method",
				}
				// Marshal and send response.
				reply, err := createMarshalledReply(request.ID, nil, jsonErr)
				if err != nil {
					log.Errorf("Failed to marshal parse failure "+
						"reply: %v", err)
					continue
				}
				c.SendMessage(reply, nil)
				continue
			}
		}

		// Asynchronously handle the request.  A semaphore is used to
		// limit the number of concurrent requests currently being
		// serviced.  If the semaphore can not be acquired, simply wait
		// until a request finished before reading the next RPC request
		// from the websocket client.
		c.serviceRequestSem.acquire()
		go func() {
			c.serviceRequest(cmd)
			c.serviceRequestSem.release()
		}()
	}

	// Ensure the connection is closed.
	c.Disconnect()
	c.wg.Done()
	log.Tracef("Websocket client input handler done for %s", c.addr)
}

// Disconnected returns whether or not the websocket client is disconnected.
func (c *wsClient) Disconnected() bool {
	c.Lock()
	isDisconnected := c.disconnected
	c.Unlock()

	return isDisconnected
}

// SendMessage sends the marshalled json reply to the websocket client.  It
// only blocks once the send channel is full, which bounds the number of
// outstanding replies.  Async notifications must go through QueueNotification
// instead so they are never subject to that bound.
func (c *wsClient) SendMessage(marshalledJSON []byte, doneChan chan bool) {
	// Don't send the message if disconnected.
	if c.Disconnected() {
		if doneChan != nil {
			doneChan <- false
		}
		return
	}

	c.sendChan <- wsResponse{msg: marshalledJSON, doneChan: doneChan}
}

// serviceRequest services a parsed RPC request by looking up and executing the
// appropriate RPC handler.  The response is marshalled and sent to the
// websocket client.
func (c *wsClient) serviceRequest(r *parsedRPCCmd) {
	// Recovery
	defer func() {
		if err := recover(); err != nil {
			log.Errorf("Panic from %v handler: %v\n", r.method, err)
			var buf [4096]byte
			n := runtime.Stack(buf[:], false)
			log.Errorf("Stack Trace ==>\n %s\n", string(buf[:n]))
			log.Infof("Recovering...")

			// Dump panic file
			_ = utils.DumpPanicInfo(fmt.Sprintf("%v", err) + "\n" + string(buf[:]))

			reply, err := createMarshalledReply(r.id, nil, stakejson.ErrRPCInternal)
			if err != nil {
				log.Errorf("Failed to marshal reply for <%s> "+
					"command: %v", r.method, err)
				return
			}
			c.SendMessage(reply, nil)
		}
	}()

	result, err := c.server.standardCmdResult(r, nil)
	reply, err := createMarshalledReply(r.id, result, err)
	if err != nil {
		log.Errorf("Failed to marshal reply for <%s> "+
			"command: %v", r.method, err)
		return
	}
	c.SendMessage(reply, nil)
}

// ErrClientQuit describes the error where a client send is not processed due
// to the client having already been disconnected or dropped.
var ErrClientQuit = errors.New("client quit")

// QueueNotification queues the marshalled notification for delivery to the
// websocket client.  Unlike SendMessage it never blocks on the send channel,
// so the notification manager keeps making progress regardless of how slowly
// any one client drains.  Returns ErrClientQuit if the client is shutting
// down.
func (c *wsClient) QueueNotification(marshalledJSON []byte) error {
	// Don't queue the message if disconnected.
	if c.Disconnected() {
		return ErrClientQuit
	}

	c.ntfnChan <- marshalledJSON
	return nil
}

// Disconnect disconnects the websocket client.
func (c *wsClient) Disconnect() {
	c.Lock()
	defer c.Unlock()

	// Nothing to do if already disconnected.
	if c.disconnected {
		return
	}

	log.Tracef("Disconnecting websocket client %s", c.addr)
	close(c.quit)
	c.conn.Close()
	c.disconnected = true
}

// Start begins processing input and output messages.
func (c *wsClient) Start() {
	log.Tracef("Starting websocket client %s", c.addr)

	// Start processing input and output.
	c.wg.Add(3)
	go c.inHandler()
	go c.notificationQueueHandler()
	go c.outHandler()
}

// WaitForShutdown blocks until the websocket client goroutines are stopped
// and the connection is closed.
func (c *wsClient) WaitForShutdown() {
	c.wg.Wait()
}

// WaitForShutdown blocks until all notification manager goroutines have
// finished.
func (m *wsNotificationManager) WaitForShutdown() {
	m.wg.Wait()
}

// Shutdown shuts down the manager, stopping the notification queue and
// notification handler goroutines.
func (m *wsNotificationManager) Shutdown() {
	close(m.quit)
}

// notificationQueueHandler handles the queuing of outgoing notifications for
// the websocket client.
func (c *wsClient) notificationQueueHandler() {
	defer utils.MyRecover()

	ntfnSentChan := make(chan bool, 1) // nonblocking sync

	// pendingNtfns holds notifications waiting on an in-flight send.  The
	// waiting flag, rather than the list length, tells cleanup whether a
	// send is still outstanding with the outHandler.
	pendingNtfns := list.New()
	waiting := false
out:
	for {
		select {
		// This channel is notified when a message is being queued to
		// be sent across the network socket.  It will either send the
		// message immediately if a send is not already in progress, or
		// queue the message to be sent once the other pending messages
		// are sent.
		case msg := <-c.ntfnChan:
			if !waiting {
				c.SendMessage(msg, ntfnSentChan)
			} else {
				pendingNtfns.PushBack(msg)
			}
			waiting = true

		// This channel is notified when a notification has been sent
		// across the network socket.
		case <-ntfnSentChan:
			// No longer waiting if there are no more messages in
			// the pending messages queue.
			next := pendingNtfns.Front()
			if next == nil {
				waiting = false
				continue
			}

			// Notify the outHandler about the next item to
			// asynchronously send.
			msg := pendingNtfns.Remove(next).([]byte)
			c.SendMessage(msg, ntfnSentChan)

		case <-c.quit:
			break out
		}
	}

	// Drain any wait channels before exiting so nothing is left waiting
	// around to send.
cleanup:
	for {
		select {
		case <-c.ntfnChan:
		case <-ntfnSentChan:
		default:
			break cleanup
		}
	}
	c.wg.Done()
	log.Tracef("Websocket client notification queue handler done "+
		"for %s", c.addr)
}

// outHandler handles all outgoing messages for the websocket connection.  It
// must be run as a goroutine.  It uses a buffered channel to serialize output
// messages while allowing the sender to continue running asynchronously.
func (c *wsClient) outHandler() {
	defer utils.MyRecover()
out:
	for {
		// Send any messages ready for send until the quit channel is
		// closed.
		select {
		case r := <-c.sendChan:
			err := c.conn.WriteMessage(websocket.TextMessage, r.msg)
			if err != nil {
				c.Disconnect()
				break out
			}
			if r.doneChan != nil {
				r.doneChan <- true
			}

		case <-c.quit:
			break out
		}
	}

	// Drain any wait channels before exiting so nothing is left waiting
	// around to send.
cleanup:
	for {
		select {
		case r := <-c.sendChan:
			if r.doneChan != nil {
				r.doneChan <- false
			}
		default:
			break cleanup
		}
	}
	c.wg.Done()
	log.Tracef("Websocket client output handler done for %s", c.addr)
}

// queueHandler maintains a queue of notifications and notification handler
// control messages.
func (m *wsNotificationManager) queueHandler() {
	queueHandler(m.queueNotification, m.notificationMsgs, m.quit)
	m.wg.Done()
}

// queueHandler drains in and delivers items to out oldest first, buffering
// internally whenever the reader falls behind.  It stops when either in or
// quit closes and closes out on return, dropping anything still queued.
func queueHandler(in <-chan interface{}, out chan<- interface{}, quit <-chan struct{}) {
	var q []interface{}
	var dequeue chan<- interface{}
	skipQueue := out
	var next interface{}
out:
	for {
		select {
		case n, ok := <-in: // take a notification
			if !ok { // it means that finished
				// Sender closed input channel.
				break out
			}

			// Either send to out immediately if skipQueue is
			// non-nil (queue is empty) and reader is ready,
			// or append to the queue and send later.
			select {
			case skipQueue <- n:
			default:
				q = append(q, n) // wait
				dequeue = out
				skipQueue = nil
				next = q[0]
			}

		case dequeue <- next:
			copy(q, q[1:])
			q[len(q)-1] = nil // avoid leak
			q = q[:len(q)-1]
			if len(q) == 0 {
				dequeue = nil
				skipQueue = out
			} else {
				next = q[0]
			}

		case <-quit:
			break out
		}
	}
	close(out)
}

// notificationHandler reads notifications and control messages from the queue
// handler and processes one at a time.
func (m *wsNotificationManager) notificationHandler() {
	// clients is a map of all currently connected websocket clients.
	// It should be noticed that this does not mean the client has passed
	// the username and password check.
	clients := make(map[chan struct{}]*wsClient)

out:
	for {
		select {
		case n, ok := <-m.notificationMsgs:
			if !ok {
				// queueHandler quit.
				break out
			}
			switch nT := n.(type) {
			case *notificationRegisterClient:
				wsc := (*wsClient)(nT)
				log.Infof("New websocket client registered: %v", wsc.addr)
				clients[wsc.quit] = wsc

			case *notificationUnregisterClient:
				wsc := (*wsClient)(nT)
				log.Infof("A websocket client disconnected: %v", wsc.addr)
				delete(clients, wsc.quit)

			case *notificationPoolsConfigured:
				data := (*service.PoolsConfiguredData)(nT)
				m.notifyPoolsConfigured(clients, data)

			case *notificationPoolLiquidated:
				data := (*service.PoolLiquidatedData)(nT)
				m.notifyPoolLiquidated(clients, data)

			default:
				log.Warnf("Unhandled notification type %v", nT)
			}

		case m.numClients <- len(clients):

		case <-m.quit:
			// Stake RPC server shutting down.
			break out
		}
	}

	for _, c := range clients {
		c.Disconnect()
	}
	m.wg.Done()
}

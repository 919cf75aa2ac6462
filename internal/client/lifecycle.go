package client

// Run starts the client. A session persisted by a previous run goes
// straight to the homepage with the channel connecting in the background;
// otherwise the login screen shows first.
func (c *Client) Run() error {
	if sess, ok := c.Session.Current(); ok {
		c.Channel.Connect(sess.Token)
		c.Router.Navigate("/homepage")
	} else {
		c.Router.Navigate("/")
	}

	defer c.Shutdown()
	return c.UI.Run()
}

func (c *Client) Shutdown() {
	c.Channel.Close()
	c.db.Close()
}

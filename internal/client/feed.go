package client

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"agora/internal/models"
	"agora/internal/router"
	"agora/internal/utils"
)

// homepageView is the live feed: every post in reverse chronological
// order, updated in place as post frames arrive. Selecting a post opens
// its details screen.
type homepageView struct {
	c      *Client
	feed   *tview.List
	layout *tview.Flex

	posts []models.Post
}

func newHomepageView(c *Client) *homepageView { return &homepageView{c: c} }

func (v *homepageView) Render() (router.Fragment, error) {
	theme := v.c.UI.Theme

	v.feed = tview.NewList()
	v.feed.SetBorder(true)
	v.feed.SetTitle(" Live feed ")
	v.feed.SetTitleColor(theme.GetColor("primary"))
	v.feed.SetBorderColor(theme.GetColor("border"))

	legend := tview.NewTextView().SetDynamicColors(true)
	legend.SetText(" [yellow](n)[-]ew post  [yellow](m)[-]essages  [yellow](c)[-]ategory  [yellow](l)[-]ogout  [yellow](q)[-]uit ")

	v.layout = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(v.feed, 0, 1, true).
		AddItem(legend, 1, 0, false)

	v.layout.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		switch ev.Rune() {
		case 'n':
			v.c.Router.Navigate("/create-post")
			return nil
		case 'm':
			v.c.Router.Navigate("/messages")
			return nil
		case 'c':
			v.c.Router.Navigate("/create-category")
			return nil
		case 'l':
			v.c.Logout()
			return nil
		case 'q':
			v.c.UI.Stop()
			return nil
		}
		return ev
	})

	return router.Fragment{Name: "homepage", Title: "Home", Content: v.layout}, nil
}

func (v *homepageView) PostRender() {
	v.c.resetListeners()
	v.c.setPostListener(v.prepend)

	go func() {
		posts, err := v.c.API.FetchPosts(context.Background())
		if err != nil {
			v.c.log.Warn("fetch posts failed", zap.Error(err))
			return
		}
		sort.SliceStable(posts, func(i, j int) bool {
			return posts[i].CreatedAt.After(posts[j].CreatedAt)
		})
		v.c.UI.QueueUpdate(func() {
			v.posts = posts
			for _, p := range posts {
				v.c.markPostSeen(p.ID)
			}
			v.redraw()
		})
	}()
}

func (v *homepageView) prepend(post models.Post) {
	v.posts = append([]models.Post{post}, v.posts...)
	v.redraw()
}

func (v *homepageView) redraw() {
	v.feed.Clear()
	for _, p := range v.posts {
		post := p
		meta := fmt.Sprintf("%s · %s", post.Author.Username, utils.FormatPrettyTime(post.CreatedAt))
		if len(post.Categories) > 0 {
			names := make([]string, 0, len(post.Categories))
			for _, cat := range post.Categories {
				names = append(names, cat.Name)
			}
			meta += " · #" + strings.Join(names, " #")
		}
		v.feed.AddItem(post.Subject, meta, 0, func() {
			v.c.Router.Navigate("/post/" + post.ID)
		})
	}
}

type createPostView struct {
	c      *Client
	form   *tview.Form
	status *tview.TextView
	layout *tview.Flex

	categories []models.Category
}

func newCreatePostView(c *Client) *createPostView { return &createPostView{c: c} }

func (v *createPostView) Render() (router.Fragment, error) {
	theme := v.c.UI.Theme

	v.status = tview.NewTextView().SetDynamicColors(true)
	v.status.SetTextColor(theme.GetColor("error"))

	v.form = tview.NewForm().
		AddInputField("Subject", "", 40, nil, nil).
		AddTextArea("Content", "", 40, 6, 0, nil)
	v.form.SetBorder(true)
	v.form.SetTitle(" New post ")
	v.form.SetTitleColor(theme.GetColor("primary"))
	v.form.SetBorderColor(theme.GetColor("border"))

	v.layout = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(v.form, 0, 1, true).
		AddItem(v.status, 1, 0, false)

	return router.Fragment{Name: "create-post", Title: "New post", Content: v.layout}, nil
}

func (v *createPostView) PostRender() {
	v.c.resetListeners()

	categories, err := v.c.API.FetchCategories(context.Background())
	if err != nil {
		v.c.log.Warn("fetch categories failed", zap.Error(err))
	}
	v.categories = categories

	options := make([]string, 0, len(categories)+1)
	options = append(options, "(none)")
	for _, cat := range categories {
		options = append(options, cat.Name)
	}
	v.form.AddDropDown("Category", options, 0, nil)

	v.form.AddButton("Publish", func() {
		subject := v.form.GetFormItemByLabel("Subject").(*tview.InputField).GetText()
		content := v.form.GetFormItemByLabel("Content").(*tview.TextArea).GetText()
		if strings.TrimSpace(subject) == "" || strings.TrimSpace(content) == "" {
			v.status.SetText("Subject and content cannot be empty")
			return
		}

		var categoryIDs []string
		index, _ := v.form.GetFormItemByLabel("Category").(*tview.DropDown).GetCurrentOption()
		if index > 0 && index-1 < len(v.categories) {
			categoryIDs = []string{v.categories[index-1].ID}
		}
		if err := v.c.CreatePost(subject, content, categoryIDs); err != nil {
			v.status.SetText("Publish failed: " + err.Error())
		}
	})
	v.form.AddButton("Cancel", func() {
		v.c.Router.Navigate("/homepage")
	})
}

type createCategoryView struct {
	c      *Client
	form   *tview.Form
	status *tview.TextView
	layout *tview.Flex
}

func newCreateCategoryView(c *Client) *createCategoryView { return &createCategoryView{c: c} }

func (v *createCategoryView) Render() (router.Fragment, error) {
	theme := v.c.UI.Theme

	v.status = tview.NewTextView().SetDynamicColors(true)
	v.status.SetTextColor(theme.GetColor("error"))

	v.form = tview.NewForm().
		AddInputField("Name", "", 30, nil, nil)
	v.form.SetBorder(true)
	v.form.SetTitle(" New category ")
	v.form.SetTitleColor(theme.GetColor("primary"))
	v.form.SetBorderColor(theme.GetColor("border"))

	v.layout = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(v.form, 0, 1, true).
		AddItem(v.status, 1, 0, false)

	return router.Fragment{Name: "create-category", Title: "New category", Content: v.layout}, nil
}

func (v *createCategoryView) PostRender() {
	v.c.resetListeners()

	v.form.AddButton("Create", func() {
		name := v.form.GetFormItemByLabel("Name").(*tview.InputField).GetText()
		if strings.TrimSpace(name) == "" {
			v.status.SetText("Category name cannot be empty")
			return
		}
		if err := v.c.API.CreateCategory(context.Background(), name); err != nil {
			v.status.SetText("Create failed: " + err.Error())
			return
		}
		v.c.Router.Navigate("/create-post")
	})
	v.form.AddButton("Cancel", func() {
		v.c.Router.Navigate("/homepage")
	})
}

// postDetailsView shows one post with its comments and a comment box.
// Comment frames for other posts are ignored.
type postDetailsView struct {
	c      *Client
	postID string

	body   *tview.TextView
	input  *tview.InputField
	layout *tview.Flex

	post         models.Post
	comments     []models.Comment
	seenComments map[string]struct{}
}

func newPostDetailsView(c *Client, postID string) *postDetailsView {
	return &postDetailsView{c: c, postID: postID, seenComments: make(map[string]struct{})}
}

func (v *postDetailsView) Render() (router.Fragment, error) {
	theme := v.c.UI.Theme

	v.body = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	v.body.SetBorder(true)
	v.body.SetTitle(" Post ")
	v.body.SetTitleColor(theme.GetColor("primary"))
	v.body.SetBorderColor(theme.GetColor("border"))

	v.input = tview.NewInputField().SetLabel("Comment: ")
	v.input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		text := strings.TrimSpace(v.input.GetText())
		if text == "" {
			return
		}
		if err := v.c.CreateComment(v.postID, text); err != nil {
			v.c.UI.ShowNotice("Comment failed: "+err.Error(), 4*time.Second)
			return
		}
		v.input.SetText("")
	})

	v.layout = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(v.body, 0, 1, false).
		AddItem(v.input, 1, 0, true)

	v.layout.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if ev.Key() == tcell.KeyEscape {
			v.c.Router.Navigate("/homepage")
			return nil
		}
		return ev
	})

	return router.Fragment{Name: "post-" + v.postID, Title: "Post", Content: v.layout}, nil
}

func (v *postDetailsView) PostRender() {
	v.c.resetListeners()
	v.c.setCommentListener(v.appendComment)

	go func() {
		post, err := v.c.API.FetchPost(context.Background(), v.postID)
		if err != nil {
			v.c.log.Warn("fetch post failed", zap.String("id", v.postID), zap.Error(err))
			return
		}
		comments, err := v.c.API.FetchComments(context.Background(), v.postID)
		if err != nil {
			v.c.log.Warn("fetch comments failed", zap.String("id", v.postID), zap.Error(err))
		}
		v.c.UI.QueueUpdate(func() {
			v.post = post
			v.comments = comments
			for _, cm := range comments {
				if cm.ID != "" {
					v.seenComments[cm.ID] = struct{}{}
				}
			}
			v.redraw()
		})
	}()
}

func (v *postDetailsView) appendComment(comment models.Comment) {
	if comment.PostID != v.postID {
		return
	}
	if comment.ID != "" {
		if _, seen := v.seenComments[comment.ID]; seen {
			return
		}
		v.seenComments[comment.ID] = struct{}{}
	}
	v.comments = append(v.comments, comment)
	v.redraw()
}

func (v *postDetailsView) redraw() {
	v.body.Clear()
	fmt.Fprintf(v.body, "[::b]%s[-:-:-]  [gray]%s · %s[-]\n\n%s\n\n",
		tview.Escape(v.post.Subject),
		tview.Escape(v.post.Author.Username),
		utils.FormatPrettyTime(v.post.CreatedAt),
		tview.Escape(v.post.Content))
	fmt.Fprintf(v.body, "[gray]── %d comment(s) ──[-]\n\n", len(v.comments))
	for _, cm := range v.comments {
		fmt.Fprintf(v.body, "[yellow]%s[-]: %s\n", tview.Escape(cm.User.Username), tview.Escape(cm.Content))
	}
	v.body.ScrollToEnd()
}

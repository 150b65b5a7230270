// Package router 维护页面路由表
package router

import (
	"github.com/gin-gonic/gin"
)

const (
	HomeName         = "home"
	ModelManagerName = "model-manager"
)

// Component 页面组件，GET 时渲染
type Component interface {
	Show(c *gin.Context)
}

// Submitter 接收表单提交的组件，额外挂载 POST
type Submitter interface {
	Submit(c *gin.Context)
}

type Route struct {
	Path      string
	Name      string
	Component Component
}

// Routes 返回应用的静态路由表
func Routes(home, modelManager Component) []Route {
	return []Route{
		{Path: "/", Name: HomeName, Component: home},
		{Path: "/model-manager", Name: ModelManagerName, Component: modelManager},
	}
}

// Table 启动时构建，之后只读
type Table struct {
	routes []Route
	byName map[string]Route
}

func NewTable(routes []Route) *Table {
	t := &Table{
		routes: make([]Route, len(routes)),
		byName: make(map[string]Route, len(routes)),
	}
	copy(t.routes, routes)
	for _, r := range routes {
		t.byName[r.Name] = r
	}
	return t
}

// Register 把路由挂到 gin 上
func (t *Table) Register(g gin.IRoutes) {
	for _, r := range t.routes {
		g.GET(r.Path, r.Component.Show)
		if s, ok := r.Component.(Submitter); ok {
			g.POST(r.Path, s.Submit)
		}
	}
}

// PathFor 按名称查找路径，未知名称返回 "/"
func (t *Table) PathFor(name string) string {
	if r, ok := t.byName[name]; ok {
		return r.Path
	}
	return "/"
}

func (t *Table) Routes() []Route {
	out := make([]Route, len(t.routes))
	copy(out, t.routes)
	return out
}

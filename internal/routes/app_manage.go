package routes

const (
	AppsPath    = "/apps"
	AppsAllPath = "/apps/all"
	JarPath     = "/apps/jar"
)

// AppManage declares the application-management section. jarView builds the
// JAR service page the first time it is opened.
func AppManage[V any](jarView func() (V, error)) Route[V] {
	requiresAuth := false
	return Route[V]{
		Sort:     2,
		Path:     AppsPath,
		Redirect: AppsAllPath,
		Meta: Meta{
			Icon:  "p-appstore",
			Title: "App management",
		},
		Children: []Route[V]{
			{
				Path:     AppsPath,
				Name:     "App",
				Redirect: JarPath,
				Children: []Route[V]{
					{
						Path:      "jar",
						Name:      "Jar",
						Component: NewLazy(jarView),
						Props:     true,
						Hidden:    true,
						Meta: Meta{
							ActiveMenu:   AppsPath,
							RequiresAuth: &requiresAuth,
						},
					},
				},
			},
		},
	}
}

//
// Tencent is pleased to support the open source community by making trpc-gameasset-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-gameasset-go is licensed under the Apache License Version 2.0.
//
//

package prompt

import "strings"

// Built-in template identifiers.
const (
	// GuideID asks for the game design guide from the uploaded documents.
	GuideID = "guide"
	// CharacterImageID asks for a main character image prompt from a guide.
	CharacterImageID = "character_image"
	// BrandbookID asks for character, obstacle and background prompts as JSON.
	BrandbookID = "brandbook_assets"
)

func builtins() []*Template {
	return []*Template{
		{
			ID:          GuideID,
			Description: "Game design guide derived from brand documents.",
			Content: strings.Join([]string{
				"Based on the information provided in the attached documents please create the following assets" +
					" to design a simple 2D mobile game used as a marketing campaign, you have to create:",
				"1. The gamification strategy",
				"2. A general description of the game (if it is similar to another game tell me which one)",
				"3. Description of the characters involved",
				"4. Description of the stages used",
				"5. General rules of the game.",
				"Generate the result as a valid string format.",
			}, "\n"),
		},
		{
			ID:          CharacterImageID,
			Description: "Main character image prompt derived from a game guide.",
			Content: "Based on the information provided, generate a prompt for image generating 2D main character" +
				" inside the describe game background. Character name inside ** **. Plain text",
		},
		{
			ID:          BrandbookID,
			Description: "Character, obstacle and background prompts derived from a brand book.",
			Variables: []Variable{
				{Name: "character_example", DefaultValue: defaultCharacterExample},
				{Name: "obstacle_example", DefaultValue: defaultObstacleExample},
				{Name: "background_example", DefaultValue: defaultBackgroundExample},
			},
			Content: strings.Join([]string{
				"Based on the brand book information provided, generate a single, compact and detailed prompt" +
					" for image generating characters, obstacles and background for a one-tapping game.",
				"**Character prompt:** Create the character using as guide the following prompt: {{character_example}}",
				"**Obstacles prompt:** Create the obstacles using as guide the following prompt: {{obstacle_example}}",
				"**Background prompt:** Create the background using as guide the following prompt: {{background_example}}",
				"Provide the results as JSON without any additional details, just the JSON output.",
				`Use the following schema: {"Character prompt": "(string)", "Obstacles prompt": "(string)",` +
					` "Background prompt": "(string)"}`,
			}, "\n"),
		},
	}
}

const (
	defaultCharacterExample = "Pixel art a detailed, full-body, character of a cute and cheerful brown cat name Katty." +
		" Katty is wearing a vibrant blue retro witch dress and hat. Cute and smiling face. The art style is crisp" +
		" and clean, with a simple color palette that highlights the character's features. Add running cycle pose" +
		" on mid air."
	defaultObstacleExample = "Vertical obstacles shaped like magical crystal spires for a fantasy mobile game." +
		" Tall, jagged crystalline columns glowing in bright colors (blue, purple, pink), semi-transparent with" +
		" shiny facets. Stylized, clean, playful design with glowing edges and magical aura. Vector-like style," +
		" smooth and iconic, suitable for 2D game assets. White or transparent background. High resolution."
	defaultBackgroundExample = "A 2D rendered game scene, 16-bit retro pixel art, retro video game, flappy bird-like" +
		" style. Bright colorful sky with a magical gradient (purple, pink, and turquoise). Floating glowing clouds" +
		" and sparkles in the air. Mystical floating islands and crystal mountains in the distance. Flatten, runnable" +
		" ground area made of enchanted grass with glowing flowers and mushrooms. Playful, vibrant, whimsical style" +
		" with smooth vector-like shading, clean and iconic, suitable for 2D mobile game assets."
)
